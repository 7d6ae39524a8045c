package fordefi

import "strings"

// TokenRule resolves one fungible token on one chain.
type TokenRule struct {
	Contract string
	Decimals int
}

// Rules is the scaling/contract table. Lookups that miss fail closed with
// UnsupportedAssetError; there is no fallback decimal count.
//
// Rules is read-only after construction and safe to share across executions.
type Rules struct {
	native map[string]int       // chain -> native decimals
	tokens map[string]TokenRule // chain "/" token -> rule
}

func NewRules() *Rules {
	return &Rules{
		native: map[string]int{},
		tokens: map[string]TokenRule{},
	}
}

// DefaultRules seeds the table with the assets the vesting setup has shipped
// with so far. The config file's assets section can extend or override it.
func DefaultRules() *Rules {
	r := NewRules()
	// EVM native coins are 18 decimals across supported chains.
	r.AddNative("bsc", 18)
	r.AddNative("ethereum", 18)

	r.AddToken("bsc", "usdt", "0x55d398326f99059fF775485246999027B3197955", 18)
	r.AddToken("ethereum", "usdt", "0xdAC17F958D2ee523a2206206994597C13D831ec7", 6)
	r.AddToken("ethereum", "pepe", "0x6982508145454Ce325dDbE47a25d4ec3d2311933", 18)
	return r
}

func (r *Rules) AddNative(chain string, decimals int) {
	r.native[normKey(chain)] = decimals
}

func (r *Rules) AddToken(chain, token, contract string, decimals int) {
	r.tokens[normKey(chain)+"/"+normKey(token)] = TokenRule{Contract: contract, Decimals: decimals}
}

// NativeDecimals returns the chain's native decimal count.
func (r *Rules) NativeDecimals(chain string) (int, error) {
	d, ok := r.native[normKey(chain)]
	if !ok {
		return 0, &UnsupportedAssetError{Chain: chain}
	}
	return d, nil
}

// TokenRule returns the contract/decimals rule for a (chain, token) pair.
func (r *Rules) TokenRule(chain, token string) (TokenRule, error) {
	tr, ok := r.tokens[normKey(chain)+"/"+normKey(token)]
	if !ok {
		return TokenRule{}, &UnsupportedAssetError{Chain: chain, Token: token}
	}
	return tr, nil
}

func normKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
