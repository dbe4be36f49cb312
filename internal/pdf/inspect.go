// Package pdf は入稿ファイルの検査と印刷用PDFの結合を提供します。
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/yourusername/printdrop/internal/apperr"
)

const mimePDF = "application/pdf"

var disableConfigDir sync.Once

// newConfiguration は pdfcpu の設定を作成します。設定ディレクトリは作らせません。
func newConfiguration() *model.Configuration {
	disableConfigDir.Do(pdfapi.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Limits は単一ファイルに対する上限値です。0 以下は無制限を表します。
type Limits struct {
	MaxFileSize int64
	MaxPages    int
}

// Inspection はアップロードされたPDFの基本メタデータを表します。
type Inspection struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	Pages int    `json:"pages"`
	MIME  string `json:"mime"`
}

// Inspector はアップロードされたファイルがPDFかを確認し、ページ数を数えます。
type Inspector struct {
	limits Limits
}

// NewInspector は Inspector を作成します。
func NewInspector(limits Limits) *Inspector {
	return &Inspector{limits: limits}
}

// Inspect は data を検査し、成功時はページ数を含むメタデータを返します。
// 失敗時は apperr.Error（UNSUPPORTED_FILE / INVALID_PDF / LIMIT_EXCEEDED / INVALID_INPUT）を返します。
func (i *Inspector) Inspect(ctx context.Context, name string, data []byte) (*Inspection, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, apperr.New(apperr.CodeInvalidInput, fmt.Sprintf("%s is empty.", name), nil)
	}
	if i.limits.MaxFileSize > 0 && int64(len(data)) > i.limits.MaxFileSize {
		return nil, apperr.New(apperr.CodeLimitExceeded,
			fmt.Sprintf("%s exceeds the %d byte upload limit.", name, i.limits.MaxFileSize), nil)
	}

	detected := mimetype.Detect(data)
	if !detected.Is(mimePDF) {
		return nil, apperr.New(apperr.CodeUnsupportedFile,
			fmt.Sprintf("%s is not a PDF document (detected %s).", name, detected.String()), nil)
	}

	pages, err := pdfapi.PageCount(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return nil, apperr.New(apperr.CodeInvalidPDF,
			fmt.Sprintf("%s could not be read. Check that the file is not damaged.", name), err)
	}
	if pages <= 0 {
		return nil, apperr.New(apperr.CodeInvalidPDF, fmt.Sprintf("%s has no pages.", name), nil)
	}
	if i.limits.MaxPages > 0 && pages > i.limits.MaxPages {
		return nil, apperr.New(apperr.CodeLimitExceeded,
			fmt.Sprintf("%s has %d pages; the limit is %d.", name, pages, i.limits.MaxPages), nil)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Inspection{
		Name:  name,
		Size:  int64(len(data)),
		Pages: pages,
		MIME:  detected.String(),
	}, nil
}

// CountPages は Inspect の結果からページ数だけを返します。
func (i *Inspector) CountPages(ctx context.Context, name string, data []byte) (int, error) {
	inspection, err := i.Inspect(ctx, name, data)
	if err != nil {
		return 0, err
	}
	return inspection.Pages, nil
}
