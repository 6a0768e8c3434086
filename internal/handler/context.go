package handler

type ContextKey string

var (
	RoleCtxKey   ContextKey = "role"
	SubCtxKey    ContextKey = "sub"
	MyInfoCtx    ContextKey = "myInfo"
	OperatorCtx  ContextKey = "operator"
	FactoryIDCtx ContextKey = "factoryID"
	WorkerCtx    ContextKey = "worker"
)
