package features

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/roadrisk/internal/model"
)

func intp(v int) *int { return &v }

func TestSummarize(t *testing.T) {
	records := []*model.Record{
		{Hour: intp(18), Weekday: intp(4), Weather: strp("Chuva"), Cause: "Velocidade", StateCode: "MG", AccidentType: "Colisao", Injured: 2, Deaths: 1},
		{Hour: intp(18), Weekday: intp(5), Weather: strp("Chuva"), Cause: "Animais", StateCode: "MG", AccidentType: "Colisao"},
		{Hour: intp(7), Weather: strp("Sol"), Cause: "Velocidade", StateCode: "SP", AccidentType: "Atropelamento", Injured: 1},
		{Cause: "Sono"},
	}

	s := Summarize(records, 2)
	assert.Equal(t, 4, s.Rows)
	assert.Equal(t, 2, s.Injured)
	assert.Equal(t, 1, s.Deaths)
	assert.Equal(t, 2, s.ByHour[18])
	assert.Equal(t, 1, s.ByHour[7])
	assert.Equal(t, 1, s.ByWeekday[4])
	assert.Equal(t, []model.CategoryCount{{Name: "Chuva", Count: 2}, {Name: "Sol", Count: 1}}, s.ByWeather)
	assert.Equal(t, []model.CategoryCount{{Name: "Velocidade", Count: 2}, {Name: "Animais", Count: 1}}, s.TopCauses)
	assert.Equal(t, 2, s.ByStateType["MG"]["Colisao"])
	assert.Equal(t, 1, s.ByStateType["SP"]["Atropelamento"])
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, 10)
	assert.Equal(t, 0, s.Rows)
	assert.Empty(t, s.TopCauses)
	assert.NotNil(t, s.ByStateType)
}
