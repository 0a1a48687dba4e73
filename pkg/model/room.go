package model

import "time"

// Room metadata is owned by room management; bookings reference rooms by id
// only and never mutate them.
type Room struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Capacity    int       `json:"capacity" bson:"capacity" validate:"required,min=1,max=500"`
	Floor       *int      `json:"floor,omitempty" bson:"floor,omitempty"`
	Equipment   []string  `json:"equipment" bson:"equipment" validate:"omitempty,dive,min=1,max=50"`
	Description string    `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=1000"`
	IsActive    bool      `json:"is_active" bson:"is_active"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	CreatedBy   string    `json:"created_by,omitempty" bson:"created_by,omitempty"`
}

// RoomUpdate carries partial room mutations; nil fields are left untouched.
type RoomUpdate struct {
	Name        *string   `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Capacity    *int      `json:"capacity,omitempty" validate:"omitempty,min=1,max=500"`
	Floor       *int      `json:"floor,omitempty"`
	Equipment   *[]string `json:"equipment,omitempty" validate:"omitempty,dive,min=1,max=50"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=1000"`
	IsActive    *bool     `json:"is_active,omitempty"`
}

// RoomFilter narrows room listings. Nil numeric fields mean "no filter".
type RoomFilter struct {
	IsActive    *bool
	CapacityMin *int
	CapacityMax *int
	Floor       *int
}
