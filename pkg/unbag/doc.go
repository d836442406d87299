// Package unbag streams decoded records out of a bag.
//
// An Iterator pulls one chunk at a time from a Container, decodes the
// chunk's records against a msgs.Catalog and hands them to the consumer in
// container order, dropping records whose topic is not selected.
//
//	it, err := unbag.DecodeContainer("drive.bag", "/points")
//	if err != nil {
//	    return err
//	}
//	defer it.Close()
//
//	for msg, err := range it.All() {
//	    var rerr *unbag.RecordError
//	    if errors.As(err, &rerr) {
//	        log.Printf("skipping: %v", rerr)
//	        continue
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(msg.Topic, msg.Data.Schema())
//	}
//
// # Errors
//
// A record that fails to decode is returned as a *RecordError together with
// a Message whose Data is nil. The iterator stays usable, so the consumer
// decides whether to skip the record or stop. Records on unknown
// connections or with schemas missing from the catalog are not errors; they
// arrive as msgs.Unrecognized.
//
// Failures of the container itself (a chunk that cannot be read or
// decompressed) wrap ErrContainer and end the iteration: every later call to
// Next returns the same error.
//
// # Memory
//
// At most one chunk's records are held at a time. PeakBatch reports the
// largest batch seen.
package unbag
