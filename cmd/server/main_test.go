package main

import (
	"bytes"
	"testing"

	"github.com/npezzotti/go-duochat/internal/config"
	"github.com/npezzotti/go-duochat/internal/database"
	"github.com/npezzotti/go-duochat/internal/fieldcrypt"
	"github.com/stretchr/testify/assert"
)

func Test_openRepository_Memory(t *testing.T) {
	repo, err := openRepository(&config.Config{
		DatabaseDSN: config.MemoryDSN,
		FieldKey:    bytes.Repeat([]byte{1}, fieldcrypt.KeySize),
	})
	assert.NoError(t, err)
	assert.IsType(t, &database.MemoryChatRepository{}, repo)
	assert.NoError(t, repo.Close())
}

func Test_openRepository_BadKey(t *testing.T) {
	_, err := openRepository(&config.Config{
		DatabaseDSN: config.MemoryDSN,
		FieldKey:    []byte("short"),
	})
	assert.Error(t, err)
}

func Test_stringSliceFlag(t *testing.T) {
	var s stringSliceFlag
	assert.NoError(t, s.Set("http://a,http://b"))
	assert.NoError(t, s.Set("http://c"))
	assert.Equal(t, stringSliceFlag{"http://a", "http://b", "http://c"}, s)
	assert.Equal(t, "http://a,http://b,http://c", s.String())
}
