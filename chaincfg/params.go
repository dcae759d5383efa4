package chaincfg

import "github.com/satindex/satindex/chaincfg/chainhash"

// Params groups the network parameters that affect the engine: the
// expected genesis hash (sanity-checked against height 0 before indexing
// proceeds) and the subsidy halving interval, which differs on some test
// networks from SubsidyHalvingInterval.
type Params struct {
	Name                   string
	GenesisHash            chainhash.Hash
	SubsidyHalvingInterval uint32
}

// MainNetParams are the parameters for the main bitcoin network.
var MainNetParams = Params{
	Name:                   "main",
	GenesisHash:            mustHash("000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"),
	SubsidyHalvingInterval: SubsidyHalvingInterval,
}

// TestNetParams are the parameters for the public test network (testnet3).
var TestNetParams = Params{
	Name:                   "test",
	GenesisHash:            mustHash("000000000933ea01ad0ee984209779baaec3ced90fa3f408719526f8d77f4943"),
	SubsidyHalvingInterval: SubsidyHalvingInterval,
}

// SigNetParams are the parameters for the public signet network.
var SigNetParams = Params{
	Name:                   "signet",
	GenesisHash:            mustHash("00000008819873e925422c1ff0f99f7cc9bbb232af63a077a11f44b8d9acc91"),
	SubsidyHalvingInterval: SubsidyHalvingInterval,
}

// RegressionNetParams are the parameters for a local regtest network. The
// halving interval is shortened so tests can exercise more than one epoch.
// GenesisHash is left zero: regtest chains are generated fresh per
// deployment, so there is no single canonical hash to check against (an
// operator pointing satindex at a regtest node is expected to start it
// from height 0 and skip the sanity check rather than rely on this field).
var RegressionNetParams = Params{
	Name:                   "regtest",
	SubsidyHalvingInterval: 150,
}

// Subsidy returns the block reward at height under p's own halving
// interval, not necessarily SubsidyHalvingInterval (regtest shortens it
// so tests can exercise more than one epoch without mining 210,000
// blocks).
func (p Params) Subsidy(height uint32) uint64 {
	return SubsidyAtInterval(height, p.SubsidyHalvingInterval)
}

// FirstSerial returns the first serial minted at height under p's own
// halving interval.
func (p Params) FirstSerial(height uint32) uint64 {
	return FirstSerialAtInterval(height, p.SubsidyHalvingInterval)
}

// mustHash parses a well-known constant genesis hash string. It panics on
// malformed input, which only a typo in this file itself could cause.
func mustHash(s string) chainhash.Hash {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		panic(err)
	}
	return *h
}

// ParamsForName resolves the CHAIN environment value (§6) to its Params,
// or reports false if the name is unrecognized.
func ParamsForName(name string) (Params, bool) {
	switch name {
	case "main":
		return MainNetParams, true
	case "test":
		return TestNetParams, true
	case "signet":
		return SigNetParams, true
	case "regtest":
		return RegressionNetParams, true
	default:
		return Params{}, false
	}
}
