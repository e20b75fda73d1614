package repository

import (
	"time"
)

// OriginLambda marks records created by the submission pipeline.
const OriginLambda = "lambda"

// PhotoRecord is the persisted metadata of a published photo. The bson and json
// names are shared by every backend so query responses look the same.
type PhotoRecord struct {
	ID            string    `gorm:"primaryKey;size:36" bson:"_id" json:"_id"`
	URL           string    `gorm:"column:url;type:text" bson:"url" json:"url"`
	CreatedAt     time.Time `gorm:"column:created_at" bson:"createdAt" json:"createdAt"`
	SourceAddress string    `gorm:"column:ip;size:64" bson:"ip" json:"ip"`
	Source        string    `gorm:"column:source;size:32" bson:"source" json:"source"`
	StorageID     string    `gorm:"column:cloudinary_id;size:255" bson:"cloudinaryId" json:"cloudinaryId"`
	Width         int       `gorm:"column:width" bson:"width" json:"width"`
	Height        int       `gorm:"column:height" bson:"height" json:"height"`
	Format        string    `gorm:"column:format;size:16" bson:"format" json:"format"`
	X             float64   `gorm:"column:x;index:idx_photos_xy,priority:1" bson:"x" json:"x"`
	Y             float64   `gorm:"column:y;index:idx_photos_xy,priority:2" bson:"y" json:"y"`
	Age           *int      `gorm:"column:age" bson:"age,omitempty" json:"age,omitempty"`
	Gender        *string   `gorm:"column:gender;size:64" bson:"gender,omitempty" json:"gender,omitempty"`
	Tags          []string  `gorm:"column:tags;type:text;serializer:json" bson:"tags,omitempty" json:"tags,omitempty"`
}

// TableName overrides the default table name.
func (PhotoRecord) TableName() string {
	return "photos"
}
