package chaincfg

// maxHalvings bounds the epoch loop in FirstSerialAtInterval: BaseSubsidy
// is a 64-bit quantity, so it reaches zero well before 64 halvings and
// every height beyond that point contributes nothing further.
const maxHalvings = 64

// SubsidyAtInterval returns the block reward, in base units, newly
// minted at height, halving every interval blocks. Params carries the
// interval for whichever network is configured (§6: CHAIN "affects only
// subsidy epoch length if the chain differs"); Subsidy below is the
// mainnet-interval convenience most callers use directly.
func SubsidyAtInterval(height, interval uint32) uint64 {
	halvings := height / interval
	if halvings >= maxHalvings {
		return 0
	}
	return BaseSubsidy >> halvings
}

// FirstSerialAtInterval returns the serial of the first base unit minted
// at height under a halving schedule with the given interval, i.e. the
// sum of SubsidyAtInterval(i, interval) for i in [0, height). It is
// computed in O(1) (bounded by maxHalvings, never by height) by summing
// each whole halving epoch's fixed contribution and then the partial
// epoch containing height (§4.B: "must not become the bottleneck").
func FirstSerialAtInterval(height, interval uint32) uint64 {
	epoch := height / interval
	remainder := height % interval

	var total uint64
	for e := uint32(0); e < epoch; e++ {
		s := SubsidyAtInterval(e*interval, interval)
		if s == 0 {
			break
		}
		total += uint64(interval) * s
	}
	total += uint64(remainder) * SubsidyAtInterval(height, interval)
	return total
}

// Subsidy returns the block reward at height under the mainnet halving
// schedule (SubsidyHalvingInterval). Engine callers that must honor a
// configured network's own interval (regtest's shortened one, most
// notably) use Params.Subsidy instead.
func Subsidy(height uint32) uint64 {
	return SubsidyAtInterval(height, SubsidyHalvingInterval)
}

// FirstSerial returns FirstSerialAtInterval under the mainnet halving
// schedule. See Subsidy's doc comment for when to prefer Params.FirstSerial.
func FirstSerial(height uint32) uint64 {
	return FirstSerialAtInterval(height, SubsidyHalvingInterval)
}
