package fordefi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TransactionsPath is the custody endpoint all transfers POST to.
const TransactionsPath = "/api/v1/transactions"

// TransferParams is the builder input for one execution attempt.
type TransferParams struct {
	Chain       string // EVM network name, e.g. "bsc"
	Kind        string // "native" | "erc20"
	Token       string // ticker for erc20 transfers; ignored for native
	Destination string
	Amount      string // decimal string in asset units
	Note        string
	VaultID     string
}

// TransferRequest is the built, ready-to-sign custody call. Body is the
// exact byte sequence that is both signed and transmitted; it is never
// re-serialized after this point.
type TransferRequest struct {
	Path string
	Body []byte
}

// Transaction payload shape expected by the Fordefi transactions API.
// Field order is fixed by the struct layout, which keeps serialization
// deterministic between signing and transmission.
type txPayload struct {
	SignerType string    `json:"signer_type"`
	Type       string    `json:"type"`
	Details    txDetails `json:"details"`
	Note       string    `json:"note"`
	VaultID    string    `json:"vault_id"`
}

type txDetails struct {
	Type            string          `json:"type"`
	Gas             gasPolicy       `json:"gas"`
	To              string          `json:"to"`
	Value           txValue         `json:"value"`
	AssetIdentifier assetIdentifier `json:"asset_identifier"`
}

type gasPolicy struct {
	Type          string `json:"type"`
	PriorityLevel string `json:"priority_level"`
}

type txValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type assetIdentifier struct {
	Type    string       `json:"type"`
	Details assetDetails `json:"details"`
}

type assetDetails struct {
	Type  string    `json:"type"`
	Chain string    `json:"chain,omitempty"` // native transfers name the network here
	Token *tokenRef `json:"token,omitempty"` // erc20 transfers carry the contract here
}

type tokenRef struct {
	Chain   string `json:"chain"`
	HexRepr string `json:"hex_repr"`
}

// BuildTransfer maps transfer params to a signed-later custody request,
// applying the chain/token scaling rule.
//
// A zero amount returns ErrZeroAmount (deliberate no-op); a missing rule
// returns UnsupportedAssetError.
func BuildTransfer(rules *Rules, p TransferParams) (*TransferRequest, error) {
	if strings.TrimSpace(p.VaultID) == "" {
		return nil, fmt.Errorf("vault id is required")
	}
	if strings.TrimSpace(p.Destination) == "" {
		return nil, fmt.Errorf("destination is required")
	}
	if IsZeroAmount(p.Amount) {
		return nil, ErrZeroAmount
	}

	var (
		scaled string
		asset  assetIdentifier
		err    error
	)
	network := evmNetworkName(p.Chain)

	switch strings.ToLower(strings.TrimSpace(p.Kind)) {
	case "native":
		// Native transfers skip contract resolution entirely; decimals are
		// fixed per chain.
		var decimals int
		decimals, err = rules.NativeDecimals(p.Chain)
		if err != nil {
			return nil, err
		}
		scaled, err = ScaleAmount(p.Amount, decimals)
		if err != nil {
			return nil, err
		}
		asset = assetIdentifier{
			Type:    "evm",
			Details: assetDetails{Type: "native", Chain: network},
		}
	case "erc20":
		var rule TokenRule
		rule, err = rules.TokenRule(p.Chain, p.Token)
		if err != nil {
			return nil, err
		}
		scaled, err = ScaleAmount(p.Amount, rule.Decimals)
		if err != nil {
			return nil, err
		}
		asset = assetIdentifier{
			Type: "evm",
			Details: assetDetails{
				Type:  "erc20",
				Token: &tokenRef{Chain: network, HexRepr: rule.Contract},
			},
		}
	default:
		return nil, fmt.Errorf("unsupported transfer kind %q", p.Kind)
	}

	payload := txPayload{
		SignerType: "api_signer",
		Type:       "evm_transaction",
		Details: txDetails{
			Type: "evm_transfer",
			Gas:  gasPolicy{Type: "priority", PriorityLevel: "medium"},
			To:   p.Destination,
			Value: txValue{
				Type:  "value",
				Value: scaled,
			},
			AssetIdentifier: asset,
		},
		Note:    p.Note,
		VaultID: p.VaultID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction payload: %w", err)
	}
	return &TransferRequest{Path: TransactionsPath, Body: body}, nil
}

func evmNetworkName(chain string) string {
	return "evm_" + normKey(chain) + "_mainnet"
}
