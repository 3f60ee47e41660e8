package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Путь по умолчанию для Docker Secrets.
const defaultSecretsDir = "/run/secrets"

// ReadSecret reads a secret from the Docker secrets directory.
func ReadSecret(secretName string) (string, error) {
	return ReadSecretFrom(defaultSecretsDir, secretName)
}

// ReadSecretFrom reads a secret file from the given directory and trims it.
func ReadSecretFrom(dir, secretName string) (string, error) {
	filePath := filepath.Join(dir, secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		// Не добавляем fallback на env var, чтобы поведение было консистентным
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}
