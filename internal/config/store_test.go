package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_LoadWritesSeedDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	data, err := s.Load(KindInstances)
	require.NoError(t, err)

	var doc InstancesDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Empty(t, doc.Instances)

	_, statErr := os.Stat(filepath.Join(dir, "instances.json"))
	require.NoError(t, statErr)
}

func TestStore_SaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	doc := InstancesDocument{Instances: []InstanceDescriptor{
		{Name: "default", URL: "https://erp.example.com", APIKey: "k"},
	}}
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	require.NoError(t, s.Save(KindInstances, data))

	loaded, err := s.LoadInstances()
	require.NoError(t, err)
	require.Len(t, loaded.Instances, 1)
	require.Equal(t, "default", loaded.Instances[0].Name)
}

func TestStore_SaveRejectsInvalidDocumentAndLeavesPriorIntact(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	good := InstancesDocument{Instances: []InstanceDescriptor{
		{Name: "a", URL: "https://a.example.com", APIKey: "k"},
	}}
	goodBytes, _ := json.Marshal(good)
	require.NoError(t, s.Save(KindInstances, goodBytes))

	bad := []byte(`{"instances": [{"name": "", "url": "https://b.example.com"}]}`)
	err = s.Save(KindInstances, bad)
	require.Error(t, err)
	var invalid *InvalidError
	require.ErrorAs(t, err, &invalid)

	loaded, err := s.LoadInstances()
	require.NoError(t, err)
	require.Len(t, loaded.Instances, 1)
	require.Equal(t, "a", loaded.Instances[0].Name)
}

func TestStore_SaveWritesBackup(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	first := InstancesDocument{Instances: []InstanceDescriptor{{Name: "a", URL: "https://a.example.com", APIKey: "k"}}}
	firstBytes, _ := json.Marshal(first)
	require.NoError(t, s.Save(KindInstances, firstBytes))

	second := InstancesDocument{Instances: []InstanceDescriptor{{Name: "b", URL: "https://b.example.com", APIKey: "k"}}}
	secondBytes, _ := json.Marshal(second)
	require.NoError(t, s.Save(KindInstances, secondBytes))

	backups, err := s.List(KindInstances)
	require.NoError(t, err)
	require.NotEmpty(t, backups)

	backupData, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	var backupDoc InstancesDocument
	require.NoError(t, json.Unmarshal(backupData, &backupDoc))
	require.Equal(t, "a", backupDoc.Instances[0].Name)
}

func TestStore_ConcurrentSavesOnDifferentKindsDoNotBlockEachOther(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	done := make(chan error, 2)
	go func() {
		doc := InstancesDocument{Instances: []InstanceDescriptor{{Name: "a", URL: "https://a.example.com", APIKey: "k"}}}
		b, _ := json.Marshal(doc)
		done <- s.Save(KindInstances, b)
	}()
	go func() {
		doc := PromptsDocument{Prompts: []PromptDescriptor{{Name: "p", Content: "c"}}}
		b, _ := json.Marshal(doc)
		done <- s.Save(KindPrompts, b)
	}()

	for i := 0; i < 2; i++ {
		require.NoError(t, <-done)
	}
}
