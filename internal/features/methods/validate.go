package methods

import (
	"fmt"
	"regexp"
	"strings"

	"serotonyl.ru/payout-bot/internal/common"
)

var (
	upiPattern     = regexp.MustCompile(`^[a-zA-Z0-9._-]{2,256}@[a-zA-Z][a-zA-Z0-9]{1,63}$`)
	accountPattern = regexp.MustCompile(`^[0-9]{9,18}$`)
	ifscPattern    = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
)

// Normalize приводит ввод к каноническому виду и проверяет его.
// Поля чужого типа должны быть пустыми.
func (in AddInput) Normalize() (AddInput, error) {
	out := AddInput{
		Type:          Type(strings.ToUpper(strings.TrimSpace(string(in.Type)))),
		UPIID:         strings.TrimSpace(in.UPIID),
		AccountNumber: strings.TrimSpace(in.AccountNumber),
		IFSCCode:      strings.ToUpper(strings.TrimSpace(in.IFSCCode)),
	}

	switch out.Type {
	case TypeUPI:
		if out.AccountNumber != "" || out.IFSCCode != "" {
			return AddInput{}, fmt.Errorf("%w: UPI method must not carry bank details", common.ErrInvalidPayoutMethod)
		}
		if !upiPattern.MatchString(out.UPIID) {
			return AddInput{}, fmt.Errorf("%w: malformed UPI handle", common.ErrInvalidPayoutMethod)
		}
	case TypeBank:
		if out.UPIID != "" {
			return AddInput{}, fmt.Errorf("%w: bank method must not carry a UPI handle", common.ErrInvalidPayoutMethod)
		}
		if !accountPattern.MatchString(out.AccountNumber) {
			return AddInput{}, fmt.Errorf("%w: account number must be 9-18 digits", common.ErrInvalidPayoutMethod)
		}
		if !ifscPattern.MatchString(out.IFSCCode) {
			return AddInput{}, fmt.Errorf("%w: malformed IFSC code", common.ErrInvalidPayoutMethod)
		}
	default:
		return AddInput{}, fmt.Errorf("%w: method_type must be UPI or BANK", common.ErrInvalidPayoutMethod)
	}
	return out, nil
}
