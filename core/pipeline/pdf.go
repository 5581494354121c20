package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/siherrmann/recall/model"
)

// DefaultExtractor creates a file extractor keyed on extension: .pdf runs
// through pdfcpu, .txt and .md are read as a single page. The title falls
// back to the file name; pdfcpu exposes no reliable document info.
func DefaultExtractor() ExtractFunc {
	return func(filePath string) (*model.Extraction, error) {
		switch strings.ToLower(filepath.Ext(filePath)) {
		case ".pdf":
			return extractPdf(filePath)
		case ".txt", ".md", ".markdown":
			return extractPlainText(filePath)
		default:
			return nil, fmt.Errorf("unsupported file type: %v", filepath.Ext(filePath))
		}
	}
}

func extractPlainText(filePath string) (*model.Extraction, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return &model.Extraction{
		Title:     titleFromPath(filePath),
		PageCount: 1,
		Pages: []model.PageText{
			{PageNumber: 1, Text: string(content)},
		},
	}, nil
}

// extractPdf extracts per-page text with pdfcpu. pdfcpu has no direct text
// extraction, so page content streams are extracted to a temp directory and
// read back; pages that fail stay empty and trip the needs-OCR check later.
func extractPdf(filePath string) (*model.Extraction, error) {
	pdfCtx, err := api.ReadContextFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	pageCount := pdfCtx.PageCount

	extraction := &model.Extraction{
		Title:     titleFromPath(filePath),
		PageCount: pageCount,
		Pages:     make([]model.PageText, 0, pageCount),
	}

	outDir, err := os.MkdirTemp("", "recall-pdf-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := pdfmodel.NewDefaultConfiguration()
	if err := api.ExtractContentFile(filePath, outDir, nil, conf); err != nil {
		for pageNumber := 1; pageNumber <= pageCount; pageNumber++ {
			extraction.Pages = append(extraction.Pages, model.PageText{PageNumber: pageNumber})
		}
		return extraction, nil
	}

	pageTexts := map[int]string{}
	files, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted content: %w", err)
	}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}

		var pageNumber int
		if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNumber); err != nil {
			if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNumber); err != nil {
				continue
			}
		}
		pageTexts[pageNumber] = string(content)
	}

	for pageNumber := 1; pageNumber <= pageCount; pageNumber++ {
		extraction.Pages = append(extraction.Pages, model.PageText{
			PageNumber: pageNumber,
			Text:       pageTexts[pageNumber],
		})
	}

	return extraction, nil
}

func titleFromPath(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
