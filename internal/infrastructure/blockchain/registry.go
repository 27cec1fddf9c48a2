// Package blockchain sends payouts from the admin wallet over EVM JSON-RPC.
package blockchain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/wekeepgrowing/settlement-service/internal/config"
)

// NativeDecimals is the scale of every native coin (wei).
const NativeDecimals int32 = 18

// DefaultTokenDecimals applies to tokens without a configured scale.
const DefaultTokenDecimals int32 = 18

var nativeCoins = map[string]bool{
	"ETH":   true,
	"BNB":   true,
	"MATIC": true,
	"AVAX":  true,
	"FTM":   true,
	"CRO":   true,
}

// IsNative reports whether currency is paid as a plain value transfer.
func IsNative(currency string) bool {
	return nativeCoins[strings.ToUpper(currency)]
}

// Registry resolves networks, token contracts and token decimals.
type Registry struct {
	networks  map[string]config.NetworkConfig
	contracts map[string]map[string]string
	decimals  map[string]int32
}

// NewRegistry builds a registry from payout configuration
func NewRegistry(cfg config.PayoutConfig) *Registry {
	r := &Registry{
		networks:  make(map[string]config.NetworkConfig, len(cfg.Networks)),
		contracts: make(map[string]map[string]string, len(cfg.TokenContracts)),
		decimals:  make(map[string]int32, len(cfg.TokenDecimals)),
	}
	for name, n := range cfg.Networks {
		r.networks[strings.ToUpper(name)] = n
	}
	for network, tokens := range cfg.TokenContracts {
		m := make(map[string]string, len(tokens))
		for symbol, address := range tokens {
			m[strings.ToUpper(symbol)] = address
		}
		r.contracts[strings.ToUpper(network)] = m
	}
	for symbol, d := range cfg.TokenDecimals {
		r.decimals[strings.ToUpper(symbol)] = d
	}
	return r
}

// Network returns the configuration of a supported network.
func (r *Registry) Network(name string) (config.NetworkConfig, bool) {
	n, ok := r.networks[strings.ToUpper(name)]
	if !ok || n.RPCURL == "" {
		return config.NetworkConfig{}, false
	}
	return n, true
}

// Networks lists supported network names in order.
func (r *Registry) Networks() []string {
	names := make([]string, 0, len(r.networks))
	for name, n := range r.networks {
		if n.RPCURL != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// TokenContract returns the token contract for currency on network.
func (r *Registry) TokenContract(network, currency string) (common.Address, error) {
	address := r.contracts[strings.ToUpper(network)][strings.ToUpper(currency)]
	if address == "" {
		return common.Address{}, fmt.Errorf("token contract not configured for %s on %s", strings.ToUpper(currency), strings.ToUpper(network))
	}
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("invalid token contract address for %s on %s", strings.ToUpper(currency), strings.ToUpper(network))
	}
	return common.HexToAddress(address), nil
}

// Decimals returns the on-chain scale of currency.
func (r *Registry) Decimals(currency string) int32 {
	if IsNative(currency) {
		return NativeDecimals
	}
	if d, ok := r.decimals[strings.ToUpper(currency)]; ok {
		return d
	}
	return DefaultTokenDecimals
}
