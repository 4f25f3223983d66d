package completion_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/internal/completion"
)

func TestFingerprint_DeterministicForEqualInput(t *testing.T) {
	temp := float32(0.7)
	messages := []completion.Message{
		{Role: completion.RoleSystem, Content: "You are a storyteller."},
		{Role: completion.RoleUser, Content: "Once upon a time"},
	}

	// Equal by value, not by reference.
	messagesCopy := []completion.Message{
		{Role: completion.RoleSystem, Content: "You are a storyteller."},
		{Role: completion.RoleUser, Content: "Once upon a time"},
	}
	tempCopy := float32(0.7)

	first := completion.Fingerprint(messages, &temp)
	second := completion.Fingerprint(messagesCopy, &tempCopy)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestFingerprint_StableAcrossProcesses(t *testing.T) {
	// Pinned value: the fingerprint must survive process restarts, so any
	// change to the canonical encoding is a breaking change.
	key := completion.Fingerprint([]completion.Message{
		{Role: completion.RoleUser, Content: "hello"},
	}, nil)

	assert.Equal(t, "70a8d7b1457acdab998668b2b6ace6718ccd542fa5f37a4eff2b5fa40bcf88ea", key)
}

func TestFingerprint_TemperatureAbsentDiffersFromZero(t *testing.T) {
	messages := []completion.Message{
		{Role: completion.RoleUser, Content: "hello"},
	}
	zero := float32(0)
	one := float32(1)

	absent := completion.Fingerprint(messages, nil)
	withZero := completion.Fingerprint(messages, &zero)
	withOne := completion.Fingerprint(messages, &one)

	assert.NotEqual(t, absent, withZero)
	assert.NotEqual(t, absent, withOne)
	assert.NotEqual(t, withZero, withOne)
}

func TestFingerprint_SensitiveToContentRoleAndOrder(t *testing.T) {
	base := []completion.Message{
		{Role: completion.RoleUser, Content: "first"},
		{Role: completion.RoleAssistant, Content: "second"},
	}
	key := completion.Fingerprint(base, nil)

	differentContent := []completion.Message{
		{Role: completion.RoleUser, Content: "first!"},
		{Role: completion.RoleAssistant, Content: "second"},
	}
	differentRole := []completion.Message{
		{Role: completion.RoleSystem, Content: "first"},
		{Role: completion.RoleAssistant, Content: "second"},
	}
	differentOrder := []completion.Message{
		{Role: completion.RoleAssistant, Content: "second"},
		{Role: completion.RoleUser, Content: "first"},
	}

	assert.NotEqual(t, key, completion.Fingerprint(differentContent, nil))
	assert.NotEqual(t, key, completion.Fingerprint(differentRole, nil))
	assert.NotEqual(t, key, completion.Fingerprint(differentOrder, nil))
}

func TestFingerprint_RandomizedConversationsCollideNever(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	roles := []string{completion.RoleSystem, completion.RoleUser, completion.RoleAssistant}

	seen := make(map[string][]completion.Message)
	for i := 0; i < 1000; i++ {
		count := 1 + rng.Intn(5)
		messages := make([]completion.Message, 0, count)
		for j := 0; j < count; j++ {
			messages = append(messages, completion.Message{
				Role:    roles[rng.Intn(len(roles))],
				Content: fmt.Sprintf("msg-%d-%d-%d", i, j, rng.Int63()),
			})
		}

		key := completion.Fingerprint(messages, nil)
		require.NotContains(t, seen, key, "collision for conversation %d", i)
		seen[key] = messages
	}
}
