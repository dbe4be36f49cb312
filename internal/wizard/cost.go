package wizard

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// UnitPrice は1ページあたりの料金です。印刷設定（カラー・用紙・部数）は料金に反映しません。
const UnitPrice int64 = 4

// LineCost は1ファイル分の料金です。
func LineCost(pages int) int64 {
	return int64(pages) * UnitPrice
}

// Cost は files の合計料金をゼロから計算します。Wizard の差分更新結果と常に一致する必要があります。
func Cost(files []UploadedFile) int64 {
	var total int64
	for _, f := range files {
		total += LineCost(f.Pages)
	}
	return total
}

// Summary は支払いステップに表示する注文概要です。
type Summary struct {
	Files        int          `json:"files"`
	Pages        int          `json:"pages"`
	UnitPrice    int64        `json:"unitPrice"`
	TotalCost    int64        `json:"totalCost"`
	Display      string       `json:"display"`
	PrintOptions PrintOptions `json:"printOptions"`
	Address      Address      `json:"address"`
}

// NewSummary は files と入力値から概要を作成します。Display は tag のロケールで桁区切りした金額です。
func NewSummary(files []UploadedFile, options PrintOptions, address Address, tag language.Tag) Summary {
	pages := 0
	for _, f := range files {
		pages += f.Pages
	}
	total := Cost(files)
	return Summary{
		Files:        len(files),
		Pages:        pages,
		UnitPrice:    UnitPrice,
		TotalCost:    total,
		Display:      message.NewPrinter(tag).Sprintf("%d", total),
		PrintOptions: options,
		Address:      address,
	}
}
