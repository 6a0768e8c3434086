package utils

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

// ProcessTypes 是演示数据中使用的工序
var ProcessTypes = []string{"裁剪", "缝制", "锁边", "熨烫", "质检", "包装"}

const digits = "0123456789"

func GenerateRandomChineseName(r *rand.Rand) string {
	surname := commonSurnames[r.IntN(len(commonSurnames))]
	nameLength := r.IntN(2) + 1

	var b strings.Builder
	b.WriteString(surname)
	for range nameLength {
		b.WriteString(commonNameCharacters[r.IntN(len(commonNameCharacters))])
	}
	return b.String()
}

// GenerateWorkerCode 用姓名拼音首字母加 4 位数字生成工号，例如 "WQ0427"
func GenerateWorkerCode(r *rand.Rand, chineseName string) string {
	var b strings.Builder
	for _, py := range pinyin.LazyConvert(chineseName, nil) {
		if py != "" {
			b.WriteString(strings.ToUpper(py[:1]))
		}
	}
	for range 4 {
		b.WriteByte(digits[r.IntN(len(digits))])
	}
	return b.String()
}

// GenerateRandomWorker 大约三分之一是临时工，临时工合同期为 3 到 6 个月
func GenerateRandomWorker(r *rand.Rand, factoryID int64, now time.Time) *domain.Worker {
	fullName := GenerateRandomChineseName(r)
	w := &domain.Worker{
		FactoryID:      factoryID,
		Code:           GenerateWorkerCode(r, fullName),
		FullName:       fullName,
		EmploymentType: domain.EmploymentPermanent,
		SkillLevel:     int32(r.IntN(5) + 1),
	}

	if r.IntN(3) == 0 {
		w.EmploymentType = domain.EmploymentTemporary
		w.HireDate = now.AddDate(0, 0, -r.IntN(60))
		end := w.HireDate.AddDate(0, 3+r.IntN(4), 0)
		w.ExpectedEndDate = &end
		w.SkillLevel = min(w.SkillLevel, 3)
	} else {
		w.HireDate = now.AddDate(0, 0, -(90 + r.IntN(900)))
	}

	return w
}

func GenerateRandomSkuCode(r *rand.Rand) string {
	return fmt.Sprintf("SKU-%c%c%03d", 'A'+rune(r.IntN(26)), 'A'+rune(r.IntN(26)), r.IntN(1000))
}

// GenerateRandomFeedback 生成一条产出反馈，技能越高、SKU 越简单效率越高
func GenerateRandomFeedback(r *rand.Rand, w *domain.Worker, skuCode string, skuComplexity int, recordedAt time.Time) *domain.AllocationFeedback {
	gap := float64(w.SkillLevel) - float64(domain.RequiredSkill(skuComplexity))
	efficiency := 0.75 + 0.08*gap + r.NormFloat64()*0.08
	efficiency = max(0, min(1.2, efficiency))

	return &domain.AllocationFeedback{
		FactoryID:  w.FactoryID,
		WorkerID:   w.ID,
		TaskType:   ProcessTypes[r.IntN(len(ProcessTypes))],
		SkuCode:    skuCode,
		Efficiency: efficiency,
		Completed:  r.Float64() < 0.5+efficiency/2,
		RecordedAt: recordedAt,
	}
}
