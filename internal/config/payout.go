package config

import (
	"strings"
	"time"
)

// NetworkConfig describes one EVM chain the admin wallet pays out on.
type NetworkConfig struct {
	RPCURL string `yaml:"rpc_url"`
	// ChainID is optional; when zero it is read from the RPC endpoint.
	ChainID int64 `yaml:"chain_id"`
}

// PayoutConfig configures the crypto payout engine.
type PayoutConfig struct {
	AdminWalletAddress string `yaml:"admin_wallet_address"`
	AdminPrivateKey    string `yaml:"admin_private_key"`

	// Encrypted admin key at rest (AES-256-GCM, base64 ciphertext and IV, hex key).
	AdminPrivateKeyCiphertext string `yaml:"admin_private_key_ciphertext"`
	AdminPrivateKeyIV         string `yaml:"admin_private_key_iv"`
	KeyEncryptionKey          string `yaml:"key_encryption_key"`

	Networks       map[string]NetworkConfig     `yaml:"networks"`
	TokenContracts map[string]map[string]string `yaml:"token_contracts"`
	TokenDecimals  map[string]int32             `yaml:"token_decimals"`

	RPCTimeout     time.Duration `yaml:"rpc_timeout"`
	WaitForReceipt bool          `yaml:"wait_for_receipt"`
	ReceiptTimeout time.Duration `yaml:"receipt_timeout"`
}

var defaultNetworkRPC = map[string]string{
	"BSC":         "https://bsc-dataseed.binance.org/",
	"ETH":         "https://cloudflare-eth.com",
	"POLYGON":     "https://polygon-rpc.com",
	"AVALANCHE":   "https://api.avax.network/ext/bc/C/rpc",
	"ARBITRUM":    "https://arb1.arbitrum.io/rpc",
	"OPTIMISM":    "https://mainnet.optimism.io",
	"BASE":        "https://mainnet.base.org",
	"FANTOM":      "https://rpc.ftm.tools",
	"CRONOS":      "https://evm.cronos.org",
	"BSC_TESTNET": "https://data-seed-prebsc-1-s1.binance.org:8545/",
	"SEPOLIA":     "https://rpc.sepolia.org",
	"MUMBAI":      "https://rpc-mumbai.maticvigil.com",
}

var defaultTokenContracts = map[string]map[string]string{
	"BSC": {
		"USDT": "0x55d398326f99059fF775485246999027B3197955",
		"USDC": "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d",
	},
	"ETH": {
		"USDT": "0xdAC17F958D2ee523a2206206994597C13D831ec7",
		"USDC": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
	},
	"POLYGON": {
		"USDT": "0xc2132D05D31c914a87C6611C10748AEb04B58e8F",
		"USDC": "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
	},
}

var defaultTokenDecimals = map[string]int32{
	"USDT": 6,
	"USDC": 6,
	"DAI":  18,
	"BUSD": 18,
}

func (p *PayoutConfig) applyDefaults() {
	p.normalize()
	if p.Networks == nil {
		p.Networks = make(map[string]NetworkConfig)
	}
	for name, url := range defaultNetworkRPC {
		n := p.Networks[name]
		if n.RPCURL == "" {
			n.RPCURL = url
		}
		p.Networks[name] = n
	}

	if p.TokenContracts == nil {
		p.TokenContracts = make(map[string]map[string]string)
	}
	for network, tokens := range defaultTokenContracts {
		if p.TokenContracts[network] == nil {
			p.TokenContracts[network] = make(map[string]string)
		}
		for symbol, address := range tokens {
			if _, ok := p.TokenContracts[network][symbol]; !ok {
				p.TokenContracts[network][symbol] = address
			}
		}
	}

	if p.TokenDecimals == nil {
		p.TokenDecimals = make(map[string]int32)
	}
	for symbol, decimals := range defaultTokenDecimals {
		if _, ok := p.TokenDecimals[symbol]; !ok {
			p.TokenDecimals[symbol] = decimals
		}
	}

	if p.RPCTimeout == 0 {
		p.RPCTimeout = 30 * time.Second
	}
	if p.ReceiptTimeout == 0 {
		p.ReceiptTimeout = 2 * time.Minute
	}
}

// normalize upper-cases network and token symbols so lookups are case-insensitive.
func (p *PayoutConfig) normalize() {
	networks := make(map[string]NetworkConfig, len(p.Networks))
	for name, n := range p.Networks {
		networks[strings.ToUpper(name)] = n
	}
	p.Networks = networks

	contracts := make(map[string]map[string]string, len(p.TokenContracts))
	for network, tokens := range p.TokenContracts {
		upper := make(map[string]string, len(tokens))
		for symbol, address := range tokens {
			upper[strings.ToUpper(symbol)] = address
		}
		contracts[strings.ToUpper(network)] = upper
	}
	p.TokenContracts = contracts

	decimals := make(map[string]int32, len(p.TokenDecimals))
	for symbol, d := range p.TokenDecimals {
		decimals[strings.ToUpper(symbol)] = d
	}
	p.TokenDecimals = decimals
}
