package servicemgr

// launcherScript is embedded in every remote service definition (spec §6,
// "Embedded launcher"). It runs inside the cluster's container: it executes
// the per-job script uploaded by the Job Dispatcher, captures its output,
// and emits a numeric exit-code artifact the dispatcher polls for.
const launcherScript = `#!/bin/bash
set -u

if [ -z "${INPUT_FILE_PATH:-}" ] || [ -z "${TMP_OUTPUT_DIR:-}" ] || [ -z "${MOUNT_PATH:-}" ]; then
  echo "launcher: INPUT_FILE_PATH, TMP_OUTPUT_DIR and MOUNT_PATH must all be set" >&2
  exit 1
fi

if [ ! -f "$INPUT_FILE_PATH" ]; then
  echo "launcher: job script $INPUT_FILE_PATH not found" >&2
  exit 1
fi

mkdir -p "$TMP_OUTPUT_DIR"
SCRIPT_NAME=$(basename "$INPUT_FILE_PATH")

bash "$INPUT_FILE_PATH" > "$TMP_OUTPUT_DIR/${SCRIPT_NAME}.out.log" 2> "$TMP_OUTPUT_DIR/${SCRIPT_NAME}.err.log"
EXIT_CODE=$?

echo -n "$EXIT_CODE" > "$TMP_OUTPUT_DIR/${SCRIPT_NAME}.exit_code"

exit $EXIT_CODE
`
