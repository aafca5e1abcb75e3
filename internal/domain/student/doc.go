// Package student contains the student record domain model.
//
// The package defines:
//
//   - Record, the student's document, with source fields (attendance, CGPA,
//     internal marks, resume score, skills, internships) and derived fields
//     (risk score and level, placement readiness score).
//   - Patch, a partial field merge used for every write so writers never
//     touch fields they do not own.
//   - Pure scoring functions: ComputeRisk and ComputeReadiness, plus the level
//     classifiers every reader must use to interpret a stored score.
//   - The digital credential identifier (EncodeIDHash / DecodeIDHash).
//   - RecordChangedEvent, the on-change notification carrying before/after
//     snapshots, and the Repository port.
//
// Derived fields are a cached projection of the source fields. They are
// recomputed by the risk trigger and the readiness command and must never be
// used as inputs to another computation.
package student
