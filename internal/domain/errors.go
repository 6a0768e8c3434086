package domain

import "errors"

var (
	ErrWorkerNotFound   = errors.New("工人不存在")
	ErrSkuNotFound      = errors.New("SKU 不存在")
	ErrConfigNotFound   = errors.New("调度配置不存在")
	ErrOperatorNotFound = errors.New("操作员不存在")

	ErrWorkerAlreadyRegistered = errors.New("工人已登记")
	ErrWorkerAlreadyPermanent  = errors.New("工人已是正式工")
	ErrWorkerContractExpired   = errors.New("临时工合同已到期")
	ErrVersionConflict         = errors.New("记录已被修改")

	ErrInvalidComplexity = errors.New("复杂度必须在 1 到 5 之间")
	ErrInvalidWorker     = errors.New("工人信息无效")
	ErrInvalidFeedback   = errors.New("产出反馈无效")
)
