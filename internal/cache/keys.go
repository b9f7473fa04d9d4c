package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

func TaskStatusKey(taskID uuid.UUID) string {
	return fmt.Sprintf("task:%s", taskID)
}

func GuestRateLimitKey(clientIP string) string {
	return fmt.Sprintf("ratelimit:guest:%s", clientIP)
}

func RepoTreeKey(repoID, branch, prefix string, offset, limit int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%s\x00%d\x00%d", repoID, branch, prefix, offset, limit)))
	return fmt.Sprintf("repo:tree:%s", hex.EncodeToString(h[:8]))
}

func RepoFileKey(repoID, branch, path string) string {
	h := sha256.Sum256([]byte(repoID + "\x00" + branch + "\x00" + path))
	return fmt.Sprintf("repo:file:%s", hex.EncodeToString(h[:8]))
}
