package pdfrender

import (
	"context"
	"errors"
	"fmt"

	"github.com/cheggaaa/pb/v3"

	"github.com/book-expert/pdf-to-image/internal/blank"
)

var errBlankPage = errors.New("page is blank")

// pageJob represents a single task for a worker to render one page of a PDF.
type pageJob struct {
	doc        *sharedDocument
	outputPath string
	pageIndex  int
	pageCount  int
}

// convertPage is the body of one page worker. Its gate slot was taken by the
// dispatcher; the slot and the document reference are always released here.
func (processor *Processor) convertPage(ctx context.Context, job pageJob, progressBar *pb.ProgressBar) {
	defer processor.gate.Release()

	defer processor.releaseDocument(job.doc)

	defer progressBar.Increment()

	defer func() {
		if recovered := recover(); recovered != nil {
			processor.log.Error("Conversion of %s panicked: %v", job.outputPath, recovered)
		}
	}()

	saveErr := processor.renderAndSave(ctx, job)

	switch {
	case errors.Is(saveErr, errBlankPage):
		if processor.config.Verbose {
			processor.log.Info("Skipped blank: %s", job.outputPath)
		}

		return
	case saveErr != nil:
		processor.log.Error("%v", saveErr)

		return
	}

	if processor.config.Verbose {
		processor.log.Info("Done: %s", job.outputPath)
	}

	processor.publishPage(ctx, job)
}

// renderAndSave renders one page and writes it to the job's output path.
func (processor *Processor) renderAndSave(ctx context.Context, job pageJob) error {
	page, pageErr := job.doc.Page(job.pageIndex)
	if pageErr != nil {
		return fmt.Errorf("cannot render %s: %w", job.outputPath, pageErr)
	}

	img, renderErr := page.Render(ctx, processor.config.DPI)
	if renderErr != nil {
		return fmt.Errorf("cannot render %s: %w", job.outputPath, renderErr)
	}

	if processor.config.SkipBlank {
		hasContent, detectErr := blank.HasContent(
			img,
			processor.config.BlankFuzzPercent,
			processor.config.BlankNonWhiteThreshold,
		)

		switch {
		case detectErr != nil:
			processor.log.Warn("Blank detection failed for %s: %v", job.outputPath, detectErr)
		case !hasContent:
			return errBlankPage
		}
	}

	saveErr := SaveImage(img, job.outputPath, processor.config.Format)
	if saveErr != nil {
		return fmt.Errorf("cannot save %s: %w", job.outputPath, saveErr)
	}

	return nil
}

func (processor *Processor) publishPage(ctx context.Context, job pageJob) {
	if processor.config.Publisher == nil {
		return
	}

	publishErr := processor.config.Publisher.PublishPage(ctx, PageEvent{
		DocumentPath: job.doc.path,
		OutputPath:   job.outputPath,
		PageNumber:   job.pageIndex + 1,
		TotalPages:   job.pageCount,
	})
	if publishErr != nil {
		processor.log.Warn("Failed to publish %s: %v", job.outputPath, publishErr)
	}
}
