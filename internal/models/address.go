package models

// ChainFamily is the network family an address belongs to
type ChainFamily string

const (
	FamilyEVM  ChainFamily = "EVM"
	FamilySVM  ChainFamily = "SVM"
	FamilyUTXO ChainFamily = "UTXO"
	FamilyMVM  ChainFamily = "MVM"
)

// ResolutionKind tags an AddressResolution
type ResolutionKind string

const (
	ResolutionLiteral     ResolutionKind = "literal"
	ResolutionNameService ResolutionKind = "name_service"
	ResolutionInvalid     ResolutionKind = "invalid"
)

// AddressResolution is the outcome of validating a user-supplied recipient
type AddressResolution struct {
	Kind    ResolutionKind `json:"kind"`
	Input   string         `json:"input"`
	Address string         `json:"address,omitempty"`
	Family  ChainFamily    `json:"family,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}

// Valid reports whether the resolution carries a usable literal address
func (r AddressResolution) Valid() bool {
	return r.Kind == ResolutionLiteral || r.Kind == ResolutionNameService
}
