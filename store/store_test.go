package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bothub-it/bothub-nlp/internal/profile"
)

func TestGetBotDefinition(t *testing.T) {
	ctx := context.Background()
	s := New(NewMockDriver(), &profile.Profile{})

	created, err := s.CreateBotDefinition(ctx, &BotDefinition{
		SessionKey: "abc",
		Language:   "pt",
		Definition: []byte(`{"language":"pt"}`),
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.NotZero(t, created.CreatedTs)

	key := "abc"
	found, err := s.GetBotDefinition(ctx, &FindBotDefinition{SessionKey: &key})
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "pt", found.Language)

	missing := "nope"
	found, err = s.GetBotDefinition(ctx, &FindBotDefinition{SessionKey: &missing})
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestDeleteBotDefinition(t *testing.T) {
	ctx := context.Background()
	s := New(NewMockDriver(), &profile.Profile{})

	_, err := s.CreateBotDefinition(ctx, &BotDefinition{SessionKey: "abc", Language: "en"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteBotDefinition(ctx, &DeleteBotDefinition{SessionKey: "abc"}))

	key := "abc"
	found, err := s.GetBotDefinition(ctx, &FindBotDefinition{SessionKey: &key})
	require.NoError(t, err)
	require.Nil(t, found)
}
