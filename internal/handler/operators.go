package handler

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func (h *Handler) GetAllOperators(w http.ResponseWriter, r *http.Request) {
	operators, err := h.repository.GetAllOperators()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取操作员列表成功", operators)
}

func (h *Handler) CreateOperator(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required,min=8"`
		FullName string `json:"fullName" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Role     string `json:"role" validate:"required,oneof=管理员 调度员 观察员"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 对密码进行哈希
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	op := &domain.Operator{
		Username:     req.Username,
		PasswordHash: string(hashedPassword),
		FullName:     req.FullName,
		Email:        req.Email,
		Role:         domain.Role(req.Role),
	}

	if err := h.repository.CreateOperator(op); err != nil {
		h.operatorConstraintError(w, r, err)
		return
	}

	h.successResponse(w, r, "操作员创建成功", op)
}

func (h *Handler) operatorConstraintError(w http.ResponseWriter, r *http.Request, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr):
		switch pgErr.ConstraintName {
		case "operators_username_key":
			h.badRequest(w, r, errors.New("用户名已存在"))
		case "operators_email_key":
			h.badRequest(w, r, errors.New("邮箱已存在"))
		default:
			h.internalServerError(w, r, err)
		}
	case errors.Is(err, domain.ErrVersionConflict):
		h.errorResponse(w, r, "更新操作员信息失败，请重试")
	default:
		h.internalServerError(w, r, err)
	}
}

func (h *Handler) GetOperator(w http.ResponseWriter, r *http.Request) {
	op := r.Context().Value(OperatorCtx).(*domain.Operator)
	h.successResponse(w, r, "获取操作员信息成功", op)
}

func (h *Handler) UpdateOperator(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName *string `json:"fullName"`
		Email    *string `json:"email" validate:"omitempty,email"`
		Role     *string `json:"role" validate:"omitempty,oneof=管理员 调度员 观察员"`
		IsActive *bool   `json:"isActive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	op := r.Context().Value(OperatorCtx).(*domain.Operator)

	if req.FullName != nil {
		op.FullName = *req.FullName
	}
	if req.Email != nil {
		op.Email = *req.Email
	}
	if req.Role != nil {
		op.Role = domain.Role(*req.Role)
	}
	if req.IsActive != nil {
		op.IsActive = *req.IsActive
	}

	if err := h.repository.UpdateOperator(op); err != nil {
		h.operatorConstraintError(w, r, err)
		return
	}

	h.successResponse(w, r, "更新操作员信息成功", op)
}

func (h *Handler) DeleteOperator(w http.ResponseWriter, r *http.Request) {
	op := r.Context().Value(OperatorCtx).(*domain.Operator)

	if err := h.repository.DeleteOperator(op.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除操作员成功", nil)
}

func (h *Handler) UpdateOperatorPassword(w http.ResponseWriter, r *http.Request) {
	op := r.Context().Value(OperatorCtx).(*domain.Operator)

	var req struct {
		Password string `json:"password" validate:"required,min=8"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	op.PasswordHash = string(hashedPassword)
	if err := h.repository.UpdateOperator(op); err != nil {
		h.operatorConstraintError(w, r, err)
		return
	}

	h.successResponse(w, r, "修改密码成功", nil)
}
