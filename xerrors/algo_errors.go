package xerrors

var (
	// ErrInvalidInput 输入格式错误。
	ErrInvalidInput = New(ErrInvalidArg, 400002, "invalid input", "check your input parameters", nil)
	// ErrInvalidOptionType 无效的期权类型。
	ErrInvalidOptionType = New(ErrInvalidArg, 400004, "invalid option type", "supported types: CALL, PUT", nil)
	// ErrDimMismatch 维度不匹配.
	ErrDimMismatch = New(ErrInvalidArg, 400007, "dimension mismatch", "matrix or vector dimensions do not match", nil)

	// ErrInvalidSpec 模拟参数非法：S0、σ、T 非正，或步数、路径数小于 1。
	ErrInvalidSpec = New(ErrInvalidArg, 400101, "invalid simulation spec", "spot, volatility, horizon must be positive; steps and paths must be at least 1", nil)
	// ErrInvalidConfidenceLevel 置信水平不在 (0, 1) 区间。
	ErrInvalidConfidenceLevel = New(ErrInvalidArg, 400102, "invalid confidence level", "confidence level must be in the open interval (0, 1)", nil)
	// ErrInsufficientSamples 样本数不足以计算所需统计量。
	ErrInsufficientSamples = New(ErrInvalidArg, 400103, "insufficient samples", "at least two samples are required", nil)
	// ErrEmptySample 样本为空。
	ErrEmptySample = New(ErrInvalidArg, 400104, "empty sample", "terminal price collection must not be empty", nil)
	// ErrInvalidParameters 定价参数非法。
	ErrInvalidParameters = New(ErrInvalidArg, 400105, "invalid pricing parameters", "check spot, strike, rate, volatility and horizon", nil)

	// ErrMathConvergence 数学计算未收敛。
	ErrMathConvergence = New(ErrInternal, 500002, "math convergence failed", "algorithm failed to converge", nil)
	// ErrCacheMiss 缓存未命中。
	ErrCacheMiss = New(ErrNotFound, 404001, "cache miss", "entry not found in cache", nil)
	// ErrNoReport 尚无可用的计算结果。
	ErrNoReport = New(ErrNotFound, 404002, "no report available", "the scheduled pipeline has not completed yet", nil)
	// ErrRequestTooLarge 请求体超过上限.
	ErrRequestTooLarge = New(ErrTooLarge, 413001, "request body too large", "reduce the payload size", nil)
)
