package models

import "time"

// Feed types.
const (
	FeedTypeText         = "text"
	FeedTypeForum        = "forum"
	FeedTypeAnnouncement = "announcement"
)

// Room types.
const (
	RoomTypeVoice = "voice"
	RoomTypeStage = "stage"
)

// Category groups feeds and rooms in the channel list.
type Category struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"not null;size:255" json:"name"`
	Position int    `gorm:"not null" json:"position"`
}

// TableName returns the table name for Category.
func (Category) TableName() string {
	return "categories"
}

// Feed is a text-style channel carrying messages and threads.
type Feed struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	Name       string `gorm:"not null;size:255" json:"name"`
	Type       string `gorm:"not null;size:50" json:"type"`
	Topic      string `gorm:"size:255" json:"topic,omitempty"`
	CategoryID *int64 `gorm:"index" json:"category_id,omitempty"`
	Position   int    `gorm:"not null" json:"position"`
}

// TableName returns the table name for Feed.
func (Feed) TableName() string {
	return "feeds"
}

// Room is a realtime voice or stage channel.
type Room struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	Name       string `gorm:"not null;size:255" json:"name"`
	Type       string `gorm:"not null;size:50" json:"type"`
	Topic      string `gorm:"size:255" json:"topic,omitempty"`
	CategoryID *int64 `gorm:"index" json:"category_id,omitempty"`
	Position   int    `gorm:"not null" json:"position"`
}

// TableName returns the table name for Room.
func (Room) TableName() string {
	return "rooms"
}

// VoiceState is the single row tracking a user's presence in a room.
// One row per user; joining another room replaces it.
type VoiceState struct {
	UserID     int64     `gorm:"primaryKey" json:"user_id"`
	RoomID     int64     `gorm:"index;not null" json:"room_id"`
	SelfMute   bool      `gorm:"default:false" json:"self_mute"`
	SelfDeaf   bool      `gorm:"default:false" json:"self_deaf"`
	Video      bool      `gorm:"default:false" json:"video"`
	Streaming  bool      `gorm:"default:false" json:"streaming"`
	ServerMute bool      `gorm:"default:false" json:"server_mute"`
	ServerDeaf bool      `gorm:"default:false" json:"server_deaf"`
	JoinedAt   time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// TableName returns the table name for VoiceState.
func (VoiceState) TableName() string {
	return "voice_states"
}

// StageSpeaker records a user granted the floor in a stage room.
type StageSpeaker struct {
	RoomID    int64     `gorm:"primaryKey" json:"room_id"`
	UserID    int64     `gorm:"primaryKey" json:"user_id"`
	GrantedAt time.Time `gorm:"autoCreateTime" json:"granted_at"`
}

// TableName returns the table name for StageSpeaker.
func (StageSpeaker) TableName() string {
	return "stage_speakers"
}

// Thread is a sub-conversation rooted at a feed message.
type Thread struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"not null;size:255" json:"name"`
	FeedID      int64  `gorm:"index;not null" json:"feed_id"`
	ParentMsgID int64  `gorm:"not null" json:"parent_msg_id"`
	Archived    bool   `gorm:"default:false" json:"archived"`
	Locked      bool   `gorm:"default:false" json:"locked"`
}

// TableName returns the table name for Thread.
func (Thread) TableName() string {
	return "threads"
}
