package failure

// Code is a stable, externally visible error code.
type Code string

const (
	CodeDatabaseConnection Code = "DB001"
	CodeDatabaseWrite      Code = "DB002"
	CodeDatabaseRead       Code = "DB003"
	CodeDatabaseQuery      Code = "DB004"

	CodeConfigMissing    Code = "CFG001"
	CodeConfigInvalid    Code = "CFG002"
	CodeConfigValidation Code = "CFG003"

	CodeScrapingNetwork   Code = "SCR001"
	CodeScrapingTimeout   Code = "SCR002"
	CodeScrapingRateLimit Code = "SCR003"
	CodeScrapingParse     Code = "SCR004"

	CodeProcessingFailed Code = "PRC001"
	CodeProcessingData   Code = "PRC002"

	CodeSystemResource Code = "SYS001"
	CodeSystemInternal Code = "SYS002"

	CodeValidation Code = "VAL001"
)
