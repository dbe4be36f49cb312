// Package wizard は注文フォームの多段ウィザード（アップロード → 印刷設定 → 住所 → 支払い）を実装します。
//
// ステップ遷移、ステップ単位の入力検証、ページ数に基づく料金計算を担い、
// 状態のスナップショットを描画側へ JSON で返します。
package wizard

import (
	"fmt"
	"strconv"
	"strings"
)

// Step はウィザードの段階を表します。
type Step int

const (
	StepUpload Step = iota
	StepPrintOptions
	StepAddress
	StepPayment
)

// LastStep は終端ステップです。ここでの「次へ」は送信（Finish）になります。
const LastStep = StepPayment

var stepNames = [...]string{
	StepUpload:       "upload",
	StepPrintOptions: "printOptions",
	StepAddress:      "address",
	StepPayment:      "payment",
}

// Steps は全ステップを順番に返します。
func Steps() []Step {
	return []Step{StepUpload, StepPrintOptions, StepAddress, StepPayment}
}

// Valid はステップが範囲内かどうかを返します。
func (s Step) Valid() bool {
	return s >= StepUpload && s <= LastStep
}

func (s Step) String() string {
	if !s.Valid() {
		return "step(" + strconv.Itoa(int(s)) + ")"
	}
	return stepNames[s]
}

// ParseStep はステップ名またはインデックス文字列を Step に変換します。
func ParseStep(raw string) (Step, error) {
	raw = strings.TrimSpace(raw)
	if idx, err := strconv.Atoi(raw); err == nil {
		step := Step(idx)
		if !step.Valid() {
			return 0, fmt.Errorf("step %d is out of range", idx)
		}
		return step, nil
	}
	for i, name := range stepNames {
		if strings.EqualFold(name, raw) {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("unknown step %q", raw)
}
