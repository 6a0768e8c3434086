package utils

import (
	"math/rand/v2"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

func TestGenerateWorkerCode(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	code := GenerateWorkerCode(r, "王伟")
	assert.Regexp(t, regexp.MustCompile(`^WW\d{4}$`), code)

	code = GenerateWorkerCode(r, "欧阳明华")
	assert.Regexp(t, regexp.MustCompile(`^OYMH\d{4}$`), code)
}

func TestGenerateRandomWorker(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	temps := 0
	for range 200 {
		w := GenerateRandomWorker(r, 5, now)

		require.Equal(t, int64(5), w.FactoryID)
		require.NotEmpty(t, w.Code)
		require.GreaterOrEqual(t, w.SkillLevel, int32(1))
		require.LessOrEqual(t, w.SkillLevel, int32(5))
		require.False(t, w.HireDate.After(now))

		if w.IsTemporary() {
			temps++
			require.NotNil(t, w.ExpectedEndDate)
			require.True(t, w.ExpectedEndDate.After(w.HireDate))
			require.LessOrEqual(t, w.SkillLevel, int32(3))
		} else {
			require.Nil(t, w.ExpectedEndDate)
		}
	}
	assert.Positive(t, temps)
	assert.Less(t, temps, 200)
}

func TestGenerateRandomFeedback(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 9))
	w := &domain.Worker{ID: 11, FactoryID: 2, SkillLevel: 4}
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var easy, hard float64
	for range 500 {
		fb := GenerateRandomFeedback(r, w, "SKU-AB001", 1, at)
		require.Equal(t, int64(11), fb.WorkerID)
		require.Equal(t, at, fb.RecordedAt)
		require.Contains(t, ProcessTypes, fb.TaskType)
		require.GreaterOrEqual(t, fb.Efficiency, 0.0)
		easy += fb.Efficiency

		hard += GenerateRandomFeedback(r, w, "SKU-ZZ999", 5, at).Efficiency
	}
	assert.Greater(t, easy, hard)
}

func TestGenerateRandomSkuCode(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 5))
	assert.Regexp(t, regexp.MustCompile(`^SKU-[A-Z]{2}\d{3}$`), GenerateRandomSkuCode(r))
}
