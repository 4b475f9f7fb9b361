package newbill

import "sync"

// Draft is the state carried from the file upload to the submit.
type Draft struct {
	mu       sync.Mutex
	billID   string
	fileURL  string
	fileName string
}

// DraftSnapshot is a consistent copy of a Draft.
type DraftSnapshot struct {
	BillID   string
	FileURL  string
	FileName string
}

// Uploaded reports whether a receipt has been stored for this draft.
func (s DraftSnapshot) Uploaded() bool {
	return s.BillID != "" && s.FileURL != ""
}

func (d *Draft) Snapshot() DraftSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DraftSnapshot{BillID: d.billID, FileURL: d.fileURL, FileName: d.fileName}
}

func (d *Draft) BillID() string   { return d.Snapshot().BillID }
func (d *Draft) FileURL() string  { return d.Snapshot().FileURL }
func (d *Draft) FileName() string { return d.Snapshot().FileName }
func (d *Draft) Uploaded() bool   { return d.Snapshot().Uploaded() }

func (d *Draft) record(billID, fileURL, fileName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.billID = billID
	d.fileURL = fileURL
	d.fileName = fileName
}
