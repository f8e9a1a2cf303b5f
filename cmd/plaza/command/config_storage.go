package command

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-plaza/internal/profile"
)

type StorageConfig struct {
	Profiles string `json:"profiles" jsonschema:"description=Directory of account profiles"`
	Quests   string `json:"quests" jsonschema:"description=Directory of quest templates"`
	Reports  string `json:"reports" jsonschema:"description=Directory of player reports"`
}

func (c *StorageConfig) validate() error {
	el := errors.NewErrorList()

	if c.Profiles == "" {
		el.Add(fmt.Errorf("storage: profiles is required"))
	}
	if c.Quests == "" {
		el.Add(fmt.Errorf("storage: quests is required"))
	}
	if c.Reports == "" {
		el.Add(fmt.Errorf("storage: reports is required"))
	}

	return el.Err()
}

func (c *StorageConfig) buildProfileStore() (*profile.Store, error) {
	return profile.Open(c.Profiles, c.Quests, c.Reports)
}
