package wizard

// 印刷設定ステップのフィールド名
const (
	FieldCopies           = "copies"
	FieldCategories       = "categories"
	FieldPaperSize        = "paperSize"
	FieldPrintColor       = "printColor"
	FieldPrintingSides    = "printingSides"
	FieldOrientation      = "orientation"
	FieldBindingOption    = "bindingOption"
	FieldPaperType        = "paperType"
	FieldPrintSpeed       = "printSpeed"
	FieldOtherDescription = "otherDescription"
)

// 住所ステップのフィールド名
const (
	FieldStreetAddress = "streetAddress"
	FieldCity          = "city"
	FieldPostalCode    = "postalCode"
	FieldPhoneNumber   = "phoneNumber"
	FieldReferralCode  = "referralCode"
)

// FieldFiles はアップロードステップの検証エラーに使うキーです。
const FieldFiles = "files"

// UploadedFile は検査を通過したアップロードファイルです。Name はウィザード内で一意です。
type UploadedFile struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	Pages int    `json:"pages"`
}

// PrintOptions は印刷設定ステップの入力値です。
// Copies は数値を想定していますが、存在チェック以外の検証は行いません。
type PrintOptions struct {
	Copies           string `json:"copies"`
	Categories       string `json:"categories"`
	PaperSize        string `json:"paperSize"`
	PrintColor       string `json:"printColor"`
	PrintingSides    string `json:"printingSides"`
	Orientation      string `json:"orientation"`
	BindingOption    string `json:"bindingOption"`
	PaperType        string `json:"paperType"`
	PrintSpeed       string `json:"printSpeed"`
	OtherDescription string `json:"otherDescription"`
}

// Address は住所ステップの入力値です。ReferralCode のみ任意項目です。
type Address struct {
	StreetAddress string `json:"streetAddress"`
	City          string `json:"city"`
	PostalCode    string `json:"postalCode"`
	PhoneNumber   string `json:"phoneNumber"`
	ReferralCode  string `json:"referralCode,omitempty"`
}

// record はステップごとの入力レコードです。フィールド名の解決はステップ内で閉じています。
type record interface {
	lookup(name string) (*string, bool)
	required() []string
}

func (p *PrintOptions) lookup(name string) (*string, bool) {
	switch name {
	case FieldCopies:
		return &p.Copies, true
	case FieldCategories:
		return &p.Categories, true
	case FieldPaperSize:
		return &p.PaperSize, true
	case FieldPrintColor:
		return &p.PrintColor, true
	case FieldPrintingSides:
		return &p.PrintingSides, true
	case FieldOrientation:
		return &p.Orientation, true
	case FieldBindingOption:
		return &p.BindingOption, true
	case FieldPaperType:
		return &p.PaperType, true
	case FieldPrintSpeed:
		return &p.PrintSpeed, true
	case FieldOtherDescription:
		return &p.OtherDescription, true
	}
	return nil, false
}

func (p *PrintOptions) required() []string {
	return []string{
		FieldCopies,
		FieldCategories,
		FieldPaperSize,
		FieldPrintColor,
		FieldPrintingSides,
		FieldOrientation,
		FieldBindingOption,
		FieldPaperType,
		FieldPrintSpeed,
		FieldOtherDescription,
	}
}

func (a *Address) lookup(name string) (*string, bool) {
	switch name {
	case FieldStreetAddress:
		return &a.StreetAddress, true
	case FieldCity:
		return &a.City, true
	case FieldPostalCode:
		return &a.PostalCode, true
	case FieldPhoneNumber:
		return &a.PhoneNumber, true
	case FieldReferralCode:
		return &a.ReferralCode, true
	}
	return nil, false
}

// referralCode は required に含めない
func (a *Address) required() []string {
	return []string{FieldStreetAddress, FieldCity, FieldPostalCode, FieldPhoneNumber}
}
