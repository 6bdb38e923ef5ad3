package utils

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

func LoadEnv() {
	godotenv.Load()
}

// TxidPrefix is the prefix of generated transaction identifiers, eg. "DON"
func TxidPrefix() string {
	prefix := os.Getenv("TXID_PREFIX")
	if prefix == "" {
		prefix = "DON"
	}
	return prefix
}

// MaxUploadSize in bytes, default 5 MiB
func MaxUploadSize() int64 {
	if v := os.Getenv("MAX_UPLOAD_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return 5 * 1024 * 1024
}

// MembershipMonths is the validity window granted on verification
func MembershipMonths() int {
	if v := os.Getenv("MEMBERSHIP_MONTHS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 12
}

func UploadDir() string {
	dir := os.Getenv("UPLOAD_DIR")
	if dir == "" {
		dir = "./uploads"
	}
	return dir
}
