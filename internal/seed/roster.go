package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

const dateLayout = "2006-01-02"

// 花名册必须包含的列
var rosterHeaders = []string{"工号", "姓名", "用工类型", "入职日期", "预计离职日期", "技能等级"}

var employmentTypeMap = map[string]domain.EmploymentType{
	"临时工":       domain.EmploymentTemporary,
	"正式工":       domain.EmploymentPermanent,
	"temporary": domain.EmploymentTemporary,
	"permanent": domain.EmploymentPermanent,
}

var ErrMissingColumn = errors.New("花名册缺少必需的列")

type WorkerRegistrar interface {
	RegisterWorker(worker *domain.Worker) error
}

// ParseRoster 读取 CSV 格式的工人花名册，列的顺序不限
func ParseRoster(r io.Reader, factoryID int64) ([]*domain.Worker, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	// 读取表头
	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	for _, h := range rosterHeaders {
		if _, ok := index[h]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, h)
		}
	}

	var workers []*domain.Worker
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("读取第 %d 行失败: %w", line, err)
		}

		record := make(map[string]string, len(rosterHeaders))
		for _, h := range rosterHeaders {
			record[h] = strings.TrimSpace(row[index[h]])
		}

		w, err := parseWorker(record, factoryID)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", line, err)
		}
		workers = append(workers, w)
	}

	return workers, nil
}

func parseWorker(record map[string]string, factoryID int64) (*domain.Worker, error) {
	employmentType, ok := employmentTypeMap[record["用工类型"]]
	if !ok {
		return nil, fmt.Errorf("未知的用工类型 %q", record["用工类型"])
	}

	hireDate, err := time.Parse(dateLayout, record["入职日期"])
	if err != nil {
		return nil, fmt.Errorf("入职日期格式错误: %w", err)
	}

	skill, err := strconv.Atoi(record["技能等级"])
	if err != nil {
		return nil, fmt.Errorf("技能等级格式错误: %w", err)
	}

	w := &domain.Worker{
		FactoryID:      factoryID,
		Code:           record["工号"],
		FullName:       record["姓名"],
		EmploymentType: employmentType,
		HireDate:       hireDate,
		SkillLevel:     int32(skill),
	}

	if v := record["预计离职日期"]; v != "" {
		end, err := time.Parse(dateLayout, v)
		if err != nil {
			return nil, fmt.Errorf("预计离职日期格式错误: %w", err)
		}
		w.ExpectedEndDate = &end
	}

	return w, nil
}

// ImportWorkers 逐个登记工人，已登记的工号会被跳过，其余错误只记录日志
func ImportWorkers(registrar WorkerRegistrar, workers []*domain.Worker, logger *slog.Logger) (imported, skipped int) {
	for _, w := range workers {
		if err := registrar.RegisterWorker(w); err != nil {
			if !errors.Is(err, domain.ErrWorkerAlreadyRegistered) {
				logger.Error("登记工人失败", "code", w.Code, "error", err)
			}
			skipped++
			continue
		}
		imported++
	}

	return imported, skipped
}
