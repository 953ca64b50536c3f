package permission

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ErrInvalidMeta is returned for metadata that does not match its declared kind.
var ErrInvalidMeta = errors.New("invalid permission metadata")

// MetaKind discriminates [Meta].
type MetaKind string

const (
	MetaKindAutomation MetaKind = "automation"
	MetaKindDelegation MetaKind = "delegation"
)

// AutomationKind names the automation a grant was issued for.
type AutomationKind string

const (
	AutomationAutoSave    AutomationKind = "auto_save"
	AutomationBillPayment AutomationKind = "bill_payment"
	AutomationDCA         AutomationKind = "dca"
	AutomationTransfer    AutomationKind = "recurring_transfer"
)

func (k AutomationKind) valid() bool {
	switch k {
	case AutomationAutoSave, AutomationBillPayment, AutomationDCA, AutomationTransfer:
		return true
	}
	return false
}

// Meta is the tagged union attached to a grant. Exactly the payload named by
// Kind is set.
type Meta struct {
	Kind       MetaKind        `json:"kind"`
	Automation *AutomationMeta `json:"automation,omitempty"`
	Delegation *DelegationMeta `json:"delegation,omitempty"`
}

// AutomationMeta bounds what an automation may do with the granted resource.
// MaxAmount is in token units, per period.
type AutomationMeta struct {
	Automation    AutomationKind  `json:"automation"`
	Token         string          `json:"token,omitempty"`
	MaxAmount     decimal.Decimal `json:"maxAmount"`
	PeriodSeconds int64           `json:"periodSeconds,omitempty"`
}

// DelegationMeta links a grant to the contract session that backs it.
type DelegationMeta struct {
	ContractSessionID string `json:"contractSessionId"`
	Delegate          string `json:"delegate"`
	TxHash            string `json:"txHash,omitempty"`
}

// AutomationGrant builds automation metadata.
func AutomationGrant(m AutomationMeta) *Meta {
	return &Meta{Kind: MetaKindAutomation, Automation: &m}
}

// DelegationGrant builds delegation metadata.
func DelegationGrant(m DelegationMeta) *Meta {
	return &Meta{Kind: MetaKindDelegation, Delegation: &m}
}

// Validate checks the union shape and the payload fields, normalizing
// addresses to checksum form.
func (m *Meta) Validate() error {
	if m == nil {
		return nil
	}
	switch m.Kind {
	case MetaKindAutomation:
		if m.Automation == nil || m.Delegation != nil {
			return fmt.Errorf("%w: automation kind requires only an automation payload", ErrInvalidMeta)
		}
		a := m.Automation
		if !a.Automation.valid() {
			return fmt.Errorf("%w: unknown automation %q", ErrInvalidMeta, a.Automation)
		}
		if a.Token != "" {
			if !common.IsHexAddress(a.Token) {
				return fmt.Errorf("%w: token is not an address", ErrInvalidMeta)
			}
			a.Token = common.HexToAddress(a.Token).Hex()
		}
		if !a.MaxAmount.IsPositive() {
			return fmt.Errorf("%w: maxAmount must be positive", ErrInvalidMeta)
		}
		if a.PeriodSeconds < 0 {
			return fmt.Errorf("%w: negative period", ErrInvalidMeta)
		}
	case MetaKindDelegation:
		if m.Delegation == nil || m.Automation != nil {
			return fmt.Errorf("%w: delegation kind requires only a delegation payload", ErrInvalidMeta)
		}
		d := m.Delegation
		if d.ContractSessionID == "" {
			return fmt.Errorf("%w: contractSessionId is required", ErrInvalidMeta)
		}
		if !common.IsHexAddress(d.Delegate) {
			return fmt.Errorf("%w: delegate is not an address", ErrInvalidMeta)
		}
		d.Delegate = common.HexToAddress(d.Delegate).Hex()
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMeta, m.Kind)
	}
	return nil
}

// UnmarshalJSON decodes strictly: unknown fields and unknown kinds fail.
func (m *Meta) UnmarshalJSON(data []byte) error {
	type plain Meta
	var out plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMeta, err)
	}
	meta := Meta(out)
	if err := meta.Validate(); err != nil {
		return err
	}
	*m = meta
	return nil
}
