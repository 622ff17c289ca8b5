package tracing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))

	long := strings.Repeat("a", 20) + strings.Repeat("b", 20)
	got := TruncateString(long, 11)
	assert.Len(t, []rune(got), 11)
	assert.Equal(t, "aaaa...bbbb", got)

	// Caps at or below the ellipsis width degrade to a plain prefix.
	assert.Equal(t, "abc", TruncateString("abcdef", 3))
}

func TestMaskPII(t *testing.T) {
	assert.Equal(t, "", MaskPII(""))
	assert.Equal(t, "*", MaskPII("a"))
	assert.Equal(t, "a*", MaskPII("ab"))
	assert.Equal(t, "a**d", MaskPII("abcd"))

	masked := MaskPII("jane@corp.com")
	assert.True(t, strings.HasPrefix(masked, "ja"))
	assert.True(t, strings.HasSuffix(masked, "om"))
	assert.NotContains(t, masked, "@corp")
}

func TestSafeAttributeValueMasksSensitiveNames(t *testing.T) {
	masked := SafeAttributeValue("user.email", "jane@corp.com", DefaultMaxLength)
	assert.NotEqual(t, "jane@corp.com", masked)
	assert.Contains(t, masked, "*")

	// Case-insensitive on the attribute name.
	masked = SafeAttributeValue("Admin_API_Key", "sk-12345678", DefaultMaxLength)
	assert.Contains(t, masked, "*")
}

func TestSafeAttributeValueTruncatesOthers(t *testing.T) {
	long := strings.Repeat("x", 400)
	got := SafeAttributeValue("matching.resume_summary", long, MaxProfileLength)
	assert.Len(t, []rune(got), MaxProfileLength)
	assert.Contains(t, got, "...")
}

func TestSafeSQLAndRedisKeyCaps(t *testing.T) {
	sql := "SELECT * FROM jobs WHERE " + strings.Repeat("job_id = ? OR ", 100)
	assert.Len(t, []rune(SafeSQL(sql)), MaxSQLLength)
	assert.Equal(t, "SELECT 1", SafeSQL("SELECT 1"))

	key := "jobmatch:match:result:" + strings.Repeat("r", 200)
	assert.Len(t, []rune(SafeRedisKey(key)), MaxRedisLength)
	assert.Equal(t, "jobmatch:job:stats", SafeRedisKey("jobmatch:job:stats"))
}
