// Package api — auth.go аутентифицирует ревьюера для защищённых
// эндпоинтов (разбор алертов, ручные корректировки). Ключ передаётся
// в заголовке X-Reviewer-Key и сверяется с Argon2id-хешем из
// конфигурации.
package api

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"
)

const reviewerKeyHeader = "X-Reviewer-Key"

// reviewerAuth возвращает middleware проверки ключа ревьюера.
// Пустой хеш в конфигурации отключает защищённые эндпоинты целиком:
// лучше закрытая дверь, чем дверь без замка.
func reviewerAuth(keyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if keyHash == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "эндпоинты ревьюера отключены",
			})
			return
		}
		key := c.GetHeader(reviewerKeyHeader)
		if key == "" || !verifyArgon2id(key, keyHash) {
			log.WithField("path", c.FullPath()).Warn("Отклонён запрос с неверным ключом ревьюера")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "неверный ключ ревьюера",
			})
			return
		}
		c.Next()
	}
}

// verifyArgon2id проверяет ключ по хешу Argon2id.
// Формат хеша: $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func verifyArgon2id(key, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}
	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computedHash := argon2.IDKey([]byte(key), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравнение в постоянном времени (защита от timing attack)
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}
