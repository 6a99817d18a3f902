/*
The sync package implements the folder mirroring algorithm. Each pass makes
a replica directory identical to a source directory.

A pass has three steps:
1) Scan -- Both trees are walked and turned into a Manifest, which maps every
   path relative to the tree's root to either a directory marker or the MD5
   digest of the file's contents.
2) Diff -- The two manifests are compared. Paths only in the source are
   added, paths only in the replica are removed, files whose digests differ
   are modified, and paths that are a file on one side and a directory on the
   other are replaced.
3) Apply -- The replica is changed to match the source. Files are copied
   with their permission bits and modification time.

Manifests are never persisted. Every pass rescans both trees, so changes
made to the replica by other processes are undone on the next pass.
*/
package sync
