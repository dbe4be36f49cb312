package wizard

// RequiredMessage は必須項目が空のときのメッセージです。
const RequiredMessage = "This field is required"

// FieldErrors はフィールド名からエラーメッセージへの対応です。
type FieldErrors map[string]string

// Form は検証対象の入力一式です。
type Form struct {
	Files        []UploadedFile
	PrintOptions PrintOptions
	Address      Address
}

// Validate は step の入力を検証し、失敗したフィールドを返します。問題がなければ空のマップです。
// 存在チェックのみで、郵便番号や電話番号の書式は確認しません。
func Validate(step Step, form Form) FieldErrors {
	errs := FieldErrors{}
	switch step {
	case StepUpload:
		if len(form.Files) == 0 {
			errs[FieldFiles] = RequiredMessage
		}
	case StepPrintOptions:
		requireAll(&form.PrintOptions, errs)
	case StepAddress:
		requireAll(&form.Address, errs)
	}
	return errs
}

// ValidateAll は全ステップを検証し、エラーのあるステップだけを返します。
func ValidateAll(form Form) map[Step]FieldErrors {
	result := make(map[Step]FieldErrors)
	for _, step := range Steps() {
		if errs := Validate(step, form); len(errs) > 0 {
			result[step] = errs
		}
	}
	return result
}

func requireAll(r record, errs FieldErrors) {
	for _, name := range r.required() {
		value, ok := r.lookup(name)
		if !ok || *value == "" {
			errs[name] = RequiredMessage
		}
	}
}
