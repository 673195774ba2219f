package issue_bill

import "storeledger/internal/core/numerator"

const (
	// NumberPrefix starts every issue bill number: ISS-00001.
	NumberPrefix = "ISS"

	// NumeratorStrategy is the default numbering strategy. Issue bills are
	// accounting documents, so numbers are gap-free unless configured otherwise.
	NumeratorStrategy = numerator.StrategyStrict
)
