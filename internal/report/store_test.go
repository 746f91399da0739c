package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/model"
)

func sampleReport(user string) *model.Report {
	return &model.Report{
		Metadata: model.ReportMetadata{UserID: user, Year: 2025, Month: "March"},
		ReportComponents: map[model.Component]string{
			model.ComponentExecutiveSummary: "Spending was steady.",
			model.ComponentRecommendations:  "Save more.",
		},
		Evaluation: map[model.Component]model.Score{
			model.ComponentExecutiveSummary: {EthicalFlag: "Safe", Confidence: 0.99, SimilarityScore: 0.42},
			model.ComponentRecommendations:  {EthicalFlag: "Unethical", Confidence: 0.8, SimilarityScore: -1},
		},
		BestApproaches: map[model.Component]model.Approach{
			model.ComponentExecutiveSummary: model.ApproachFewShot,
			model.ComponentRecommendations:  model.ApproachChainOfThought,
		},
	}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	r := sampleReport("u1")

	path, err := Save(r, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2025", "March", "u1_2025_March.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n    \"report_components\": {\n        \"executive_summary\"")
	assert.Contains(t, string(raw), `"month": "March"`)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, r, loaded)
}

func TestSave_Errors(t *testing.T) {
	_, err := Save(nil, t.TempDir())
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = Save(&model.Report{}, t.TempDir())
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadDir_SkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	for _, u := range []string{"u2", "u1"} {
		_, err := Save(sampleReport(u), dir)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2025", "broken.json"), []byte("{"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0600))

	reports, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "u1", reports[0].Metadata.UserID)
	assert.Equal(t, "u2", reports[1].Metadata.UserID)

	_, err = LoadDir(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}

func TestEvaluationRows(t *testing.T) {
	rows := EvaluationRows([]*model.Report{sampleReport("u1"), sampleReport("u2")})
	require.Len(t, rows, 4)

	assert.Equal(t, model.EvaluationRow{
		UserID:          "u1",
		Year:            2025,
		Month:           "March",
		Component:       model.ComponentExecutiveSummary,
		EthicalFlag:     "Safe",
		Confidence:      0.99,
		SimilarityScore: 0.42,
		BestApproach:    model.ApproachFewShot,
	}, rows[0])
	assert.Equal(t, model.ComponentRecommendations, rows[1].Component)
	assert.Equal(t, "u2", rows[2].UserID)

	assert.Empty(t, EvaluationRows(nil))
}

func TestWriteRowsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRowsCSV(&buf, EvaluationRows([]*model.Report{sampleReport("u1")})))

	want := "user_id,year,month,component,ethical_flag,confidence,similarity_score,best_approach\n" +
		"u1,2025,March,executive_summary,Safe,0.99,0.42,few_shot\n" +
		"u1,2025,March,recommendations,Unethical,0.8,-1,chain_of_thought\n"
	assert.Equal(t, want, buf.String())
}
