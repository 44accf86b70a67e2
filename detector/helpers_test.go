package detector

import (
	"time"

	"apiscope/detector/models"
)

func memFile(path, content string) *models.SnapshotFile {
	data := []byte(content)
	return models.NewSnapshotFile(path, int64(len(data)), time.Now(), func() ([]byte, error) {
		return data, nil
	})
}

func memSnapshot(files ...*models.SnapshotFile) *models.SourceSnapshot {
	return &models.SourceSnapshot{Root: "mem", Files: files}
}

func classifiedFixture(path, language, content string, types ...models.APIType) models.ClassifiedFile {
	cf := models.ClassifiedFile{
		File:       memFile(path, content),
		Language:   language,
		Candidates: make(map[models.APIType]bool),
	}
	for _, t := range types {
		cf.Candidates[t] = true
	}
	return cf
}
