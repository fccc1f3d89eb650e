package domain

// WalletSession is the normalized view of a connected wallet.
type WalletSession struct {
	Address   string `json:"address"`
	ChainID   string `json:"chainId"`
	Connector string `json:"connector"`
}
