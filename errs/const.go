package errs

const (
	ErrCode_OK        = 0
	ErrCode_Unknown   = 1
	ErrCode_Unmarshal = 2
	ErrCode_Marshal   = 3

	// 计算相关
	ErrCode_DivideByZero     = 100
	ErrCode_InvalidOperation = 101

	// 鉴权相关
	ErrCode_Unauthenticated = 200
)

var (
	Unknown   = CreateCodeError(ErrCode_Unknown, "UNKNOWN")
	Unmarshal = CreateCodeError(ErrCode_Unmarshal, "UNMARSHAL")
	Marshal   = CreateCodeError(ErrCode_Marshal, "MARSHAL")

	// 这两条描述是对外契约, 客户端按原文匹配, 不要改
	DivideByZero     = CreateCodeError(ErrCode_DivideByZero, "Cannot divide by zero!")
	InvalidOperation = CreateCodeError(ErrCode_InvalidOperation, "Invalid operation")

	Unauthenticated = CreateCodeError(ErrCode_Unauthenticated, "invalid token")
)
