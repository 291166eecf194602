package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

const dataRoomsTable = "dataRooms"

// RoomState tells whether a data room still accepts changes.
type RoomState string

const (
	// RoomOpen accepts new file entries.
	RoomOpen RoomState = "open"
	// RoomLocked rejects any further modification.
	RoomLocked RoomState = "locked"
)

// FileEntry describes one file shared into a data room. The digest
// addresses the content in the file store; the room never holds the bytes
// themselves.
type FileEntry struct {
	Name    string            `json:"name"`
	Digest  string            `json:"digest"`
	Size    int64             `json:"size,omitempty"`
	AddedBy interfaces.UserID `json:"addedBy"`
	AddedAt time.Time         `json:"addedAt"`
}

// Validate checks the entry names a file and carries a well-formed content
// digest.
func (e FileEntry) Validate() error {
	if e.Name == "" {
		return errors.New("file entry has no name")
	}
	if _, err := interfaces.NewFileDigestFromHex(e.Digest); err != nil {
		return fmt.Errorf("file entry %q: %w", e.Name, err)
	}
	return nil
}

// DataRoom is one shared room: its lifecycle state and the listing of file
// entries. One row per room in the dataRooms table.
type DataRoom struct {
	ID        interfaces.RoomID `json:"id"`
	State     RoomState         `json:"state"`
	Files     []FileEntry       `json:"files"`
	CreatedBy interfaces.UserID `json:"createdBy"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Locked reports whether the room rejects modification.
func (room *DataRoom) Locked() bool {
	return room.State == RoomLocked
}

// Lock closes the room for modification. Locking a locked room is
// harmless.
func (room *DataRoom) Lock() {
	room.State = RoomLocked
}

// AddFile adds a file entry to the room. Re-adding a name replaces the
// previous entry, so the listing holds the latest digest per name. Locked
// rooms reject the change.
func (room *DataRoom) AddFile(entry FileEntry) error {
	if room.Locked() {
		return fmt.Errorf("%w: %s", ErrRoomLocked, room.ID)
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	for i, existing := range room.Files {
		if existing.Name == entry.Name {
			room.Files[i] = entry
			return nil
		}
	}
	room.Files = append(room.Files, entry)
	return nil
}

type dataRoomIndex struct {
	IDs []interfaces.RoomID `json:"ids"`
}

// DataRooms is the ledger-backed room collection: an id listing under the
// allRow key plus one child row per room.
type DataRooms struct {
	table interfaces.Table
	ids   []interfaces.RoomID
}

// LoadDataRooms reads the collection from the ledger. An absent index row
// yields an empty collection.
func LoadDataRooms(ctx context.Context, ledger interfaces.Ledger) (*DataRooms, error) {
	rooms := &DataRooms{table: ledger.Table(dataRoomsTable)}

	data, err := rooms.table.Get(ctx, allRow)
	if errors.Is(err, interfaces.ErrRowNotFound) {
		return rooms, nil
	} else if err != nil {
		return nil, fmt.Errorf("could not read data room index: %w", err)
	}

	var index dataRoomIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("corrupt data room index: %w", err)
	}

	rooms.ids = index.IDs
	return rooms, nil
}

// Save persists the id listing.
func (r *DataRooms) Save(ctx context.Context) error {
	data, err := json.Marshal(dataRoomIndex{IDs: r.ids})
	if err != nil {
		return fmt.Errorf("could not serialize data room index: %w", err)
	}

	if err := r.table.Set(ctx, allRow, data); err != nil {
		return fmt.Errorf("could not persist data room index: %w", err)
	}
	return nil
}

// IDs returns the ids of all rooms in creation order.
func (r *DataRooms) IDs() []interfaces.RoomID {
	ids := make([]interfaces.RoomID, len(r.ids))
	copy(ids, r.ids)
	return ids
}

// Get returns the room stored under id, or ErrRoomNotFound.
func (r *DataRooms) Get(ctx context.Context, id interfaces.RoomID) (DataRoom, error) {
	data, err := r.table.Get(ctx, id.String())
	if errors.Is(err, interfaces.ErrRowNotFound) {
		return DataRoom{}, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	} else if err != nil {
		return DataRoom{}, fmt.Errorf("could not read data room %s: %w", id, err)
	}

	var room DataRoom
	if err := json.Unmarshal(data, &room); err != nil {
		return DataRoom{}, fmt.Errorf("corrupt data room %s: %w", id, err)
	}
	return room, nil
}

// Create persists a new room and appends its id to the listing.
func (r *DataRooms) Create(ctx context.Context, room DataRoom) error {
	if err := room.ID.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	for _, id := range r.ids {
		if id == room.ID {
			return fmt.Errorf("%w: %s", ErrRoomExists, room.ID)
		}
	}

	if err := r.Update(ctx, room); err != nil {
		return err
	}

	r.ids = append(r.ids, room.ID)
	return r.Save(ctx)
}

// Update overwrites the room's child row. The id listing is untouched.
func (r *DataRooms) Update(ctx context.Context, room DataRoom) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("could not serialize data room: %w", err)
	}
	if err := r.table.Set(ctx, room.ID.String(), data); err != nil {
		return fmt.Errorf("could not persist data room %s: %w", room.ID, err)
	}
	return nil
}
