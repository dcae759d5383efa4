package chaincfg

const (
	// SatoshiPerBitcoin is the number of base units in one coin.
	SatoshiPerBitcoin = 1e8

	// BaseSubsidy is the starting subsidy amount for mined blocks. This
	// value is halved every SubsidyHalvingInterval blocks.
	BaseSubsidy = 50 * SatoshiPerBitcoin

	// SubsidyHalvingInterval is the number of blocks between each
	// subsidy halving epoch.
	SubsidyHalvingInterval = 210_000

	// MaxBlockHeaderPayload is the number of bytes in a serialized block
	// header as produced by the block decoder adapter.
	MaxBlockHeaderPayload = 80
)
