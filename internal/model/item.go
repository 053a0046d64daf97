package model

import (
	"fmt"
	"regexp"
)

// ItemRef identifies one stored object by key and content tag.
type ItemRef struct {
	Name string
	Tag  string
}

func (r ItemRef) String() string {
	return fmt.Sprintf("%s@%s", r.Name, r.Tag)
}

// Item is an ItemRef with its fetched content.
type Item struct {
	ItemRef
	Content string
}

// ItemType classifies an item by its path inside an entity.
type ItemType string

const (
	ItemProcess            ItemType = "PROCESS"
	ItemRules              ItemType = "RULES"
	ItemLibrary            ItemType = "LIBRARY"
	ItemConfigSchema       ItemType = "CONFIG_SCHEMA"
	ItemConfigDefault      ItemType = "CONFIG_DEFAULT"
	ItemConfigUsecase      ItemType = "CONFIG_USECASE"
	ItemConfigFeatures     ItemType = "CONFIG_FEATURES"
	ItemPolicyStatus       ItemType = "POLICY_STATUS"
	ItemPolicyStatusSparse ItemType = "POLICY_STATUS_SPARSE"
	ItemUnrecognized       ItemType = "UNRECOGNIZED"
)

var (
	rulesPattern          = regexp.MustCompile(`^.*/\d+\.\d+(?:|/\d+)/rules/*.*\.dmn$`)
	libraryPattern        = regexp.MustCompile(`^.*/routes/*.*\.xml$`)
	processPattern        = regexp.MustCompile(`^.*/\d+\.\d+(?:|/\d+)/process/*.*\.xml$`)
	statusPattern         = regexp.MustCompile(`^.*/metadata\.json$`)
	sparseStatusPattern   = regexp.MustCompile(`^.*/\d+\.\d+(?:|/\d+)/policy-metadata\.json$`)
	usecasePattern        = regexp.MustCompile(`^.*/\d+\.\d+(?:|/\d+)/config/*.*\.json$`)
	reservedConfigPattern = regexp.MustCompile(`^(?:.*/defaults\.json|.*/schema\.json|.*/features(.*)\.json)$`)
	defaultsPattern       = regexp.MustCompile(`config/defaults\.json$`)
	schemaPattern         = regexp.MustCompile(`config/schema\.json$`)
	featuresPattern       = regexp.MustCompile(`config/features(?:|-[A-Za-z-].*)\.json$`)
)

// ClassifyItem returns the ItemType of a store key. Checks run in a fixed
// order; the first match wins.
func ClassifyItem(name string) ItemType {
	switch {
	case rulesPattern.MatchString(name):
		return ItemRules
	case libraryPattern.MatchString(name):
		return ItemLibrary
	case processPattern.MatchString(name):
		return ItemProcess
	case statusPattern.MatchString(name):
		return ItemPolicyStatus
	case sparseStatusPattern.MatchString(name):
		return ItemPolicyStatusSparse
	case usecasePattern.MatchString(name) && !reservedConfigPattern.MatchString(name):
		return ItemConfigUsecase
	case defaultsPattern.MatchString(name):
		return ItemConfigDefault
	case schemaPattern.MatchString(name):
		return ItemConfigSchema
	case featuresPattern.MatchString(name):
		return ItemConfigFeatures
	}
	return ItemUnrecognized
}
