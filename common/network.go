package common

import (
	"github.com/btcsuite/btcd/chaincfg"
)

type Network struct {
	Name string
}

var Bitcoin = Network{
	Name: "bitcoin",
}

var BitcoinTestNet = Network{
	Name: "testnet",
}

var BitcoinRegTest = Network{
	Name: "regtest",
}

func NetworkFromString(name string) Network {
	switch name {
	case BitcoinTestNet.Name:
		return BitcoinTestNet
	case BitcoinRegTest.Name:
		return BitcoinRegTest
	case Bitcoin.Name:
		fallthrough
	default:
		return Bitcoin
	}
}

func (n Network) ChainParams() *chaincfg.Params {
	switch n.Name {
	case BitcoinTestNet.Name:
		return &chaincfg.TestNet3Params
	case BitcoinRegTest.Name:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}
