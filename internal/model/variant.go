package model

import "time"

type Visibility string

const (
	VisibilityActive Visibility = "active"
	VisibilityTrash  Visibility = "trash"
)

// Variant is one proposed trade intent inside a lab. Position and benchmark
// config are frozen snapshots taken at the last normalization.
type Variant struct {
	VariantID         int64
	LabID             int64
	ViewID            *int64
	Ticker            string
	Action            Action
	SizingInput       string
	SizingSpec        SizingSpec
	Computed          *ComputedValues
	DirectionConflict *DirectionConflict
	BelowLotWarning   bool
	IsValid           bool
	ErrorText         string
	Position          CurrentPosition
	ActiveWeightCfg   *ActiveWeightConfig
	Visibility        Visibility
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}
