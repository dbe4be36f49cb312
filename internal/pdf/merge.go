package pdf

import (
	"context"
	"fmt"
	"io"
	"os"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/yourusername/printdrop/internal/apperr"
)

// MergeFiles は inputs を指定順に結合して output に書き出し、結合後のページ数を返します。
// 入力が1つの場合は結合せずにそのままコピーします。
func MergeFiles(ctx context.Context, inputs []string, output string) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(inputs) == 0 {
		return 0, apperr.New(apperr.CodeInvalidInput, "no files to merge.", nil)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if len(inputs) == 1 {
		if err := copyFile(inputs[0], output); err != nil {
			return 0, err
		}
	} else if err := pdfapi.MergeCreateFile(inputs, output, false, newConfiguration()); err != nil {
		return 0, apperr.New(apperr.CodeInvalidPDF, "merging the uploaded files failed.", err)
	}

	pages, err := pdfapi.PageCountFile(output)
	if err != nil {
		return 0, fmt.Errorf("結合結果のページ数取得に失敗しました: %w", err)
	}
	return pages, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("入力ファイルのオープンに失敗しました: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("出力ファイルの作成に失敗しました: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("出力ファイルへの書き込みに失敗しました: %w", err)
	}
	return out.Close()
}
