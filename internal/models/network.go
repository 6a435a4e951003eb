package models

type NetworkID string

const (
	BaseSepolia NetworkID = "BASE-SEPOLIA"
	ArcTestnet  NetworkID = "ARC-TESTNET"
)

func (n NetworkID) String() string {
	return string(n)
}

// SupportedNetworks returns the closed set of networks transfers may touch.
func SupportedNetworks() []NetworkID {
	return []NetworkID{BaseSepolia, ArcTestnet}
}

// IsSupported reports whether n is one of the configured networks.
func IsSupported(n NetworkID) bool {
	for _, s := range SupportedNetworks() {
		if s == n {
			return true
		}
	}
	return false
}
