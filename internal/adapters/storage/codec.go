package storage

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/alejandrodnm/arvbot/internal/domain"
)

// Las imágenes se guardan como array JSON en ambos backends.

func encodeImages(images []string) (string, error) {
	b, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("encode images: %w", err)
	}
	return string(b), nil
}

func decodeImages(s string) ([]string, error) {
	var images []string
	if err := json.Unmarshal([]byte(s), &images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	return images, nil
}

// sortByCreation ordena por created_at y, a igual instante, por id.
func sortByCreation(sessions []domain.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}
