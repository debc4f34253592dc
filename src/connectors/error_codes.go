package connectors

import "fmt"

// BinanceErrorCodes maps Binance futures API error codes to names.
var BinanceErrorCodes = map[int64]string{
	-1000: "UNKNOWN",                 // Unknown error while processing the request
	-1001: "DISCONNECTED",            // Internal error; unable to process the request
	-1003: "TOO_MANY_REQUESTS",       // Request weight limit exceeded
	-1007: "TIMEOUT",                 // Timeout waiting for backend response
	-1021: "INVALID_TIMESTAMP",       // Timestamp outside recvWindow
	-1022: "INVALID_SIGNATURE",       // Signature not valid
	-1100: "ILLEGAL_CHARS",           // Illegal characters in a parameter
	-1102: "MANDATORY_PARAM_MISSING", // Mandatory parameter missing or malformed
	-1111: "BAD_PRECISION",           // Precision over the maximum for the asset
	-1120: "BAD_INTERVAL",            // Invalid interval
	-1121: "BAD_SYMBOL",              // Invalid symbol
	-2010: "NEW_ORDER_REJECTED",      // Order rejected by the matching engine
	-2019: "MARGIN_NOT_SUFFICIEN",    // Margin is insufficient
	-2022: "REDUCE_ONLY_REJECT",      // ReduceOnly order rejected
	-4003: "QUANTITY_LESS_THAN_ZERO", // Quantity less than or equal to zero
	-4164: "MIN_NOTIONAL",            // Order notional below the minimum
}

// transientBinanceCodes are failures worth retrying with the same request.
var transientBinanceCodes = map[int64]bool{
	-1000: true,
	-1001: true,
	-1003: true,
	-1007: true,
	-1021: true,
}

// GetErrorMsg returns a human-readable message for a given Binance error code.
// If the code is unknown, returns a generic message including the code.
func GetErrorMsg(code int64) string {
	if msg, ok := BinanceErrorCodes[code]; ok {
		return msg
	}
	return fmt.Sprintf("UNKNOWN_BINANCE_ERROR_%d", code)
}
