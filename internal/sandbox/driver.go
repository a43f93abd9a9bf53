package sandbox

import "fmt"

// driverTemplate is the Python entry point executed as the sandboxed
// child process. It sets resource limits first, builds a
// restricted-builtins namespace holding only the allow-listed modules,
// reads the injected data dict as JSON on stdin, execs the user's
// script against that namespace, and writes a
// single JSON object to stdout: either {success, output, result} or
// {success=false, output, error}.
const driverTemplate = `
import sys, json, io, resource, builtins

def _set_limits(max_memory_mb, max_cpu_seconds):
    try:
        mem = max_memory_mb * 1024 * 1024
        resource.setrlimit(resource.RLIMIT_AS, (mem, mem))
        resource.setrlimit(resource.RLIMIT_CPU, (max_cpu_seconds, max_cpu_seconds))
    except (ValueError, OSError):
        pass

_ALLOWED_BUILTINS = {
    'int', 'float', 'str', 'bool', 'bytes',
    'list', 'dict', 'set', 'tuple', 'frozenset',
    'type', 'object',
    'len', 'range', 'enumerate', 'zip', 'map', 'filter',
    'sorted', 'reversed', 'min', 'max', 'sum', 'abs',
    'round', 'pow', 'divmod',
    'all', 'any',
    'isinstance', 'issubclass', 'hasattr',
    'callable', 'iter', 'next',
    'bin', 'hex', 'oct', 'ord', 'chr',
    'format', 'repr', 'ascii',
    'print', 'id', 'hash',
    'slice', 'property', 'staticmethod', 'classmethod',
    'super',
    'Exception', 'ValueError', 'TypeError', 'KeyError', 'IndexError',
    'AttributeError', 'RuntimeError', 'StopIteration', 'ZeroDivisionError',
}

def _safe_globals(data):
    g = {'__builtins__': {}}
    for name in _ALLOWED_BUILTINS:
        if hasattr(builtins, name):
            g['__builtins__'][name] = getattr(builtins, name)

    import math, statistics, datetime, re
    import json as json_module
    from collections import defaultdict, Counter, OrderedDict
    g['math'] = math
    g['statistics'] = statistics
    g['datetime'] = datetime
    g['re'] = re
    g['json'] = json_module
    g['defaultdict'] = defaultdict
    g['Counter'] = Counter
    g['OrderedDict'] = OrderedDict

    try:
        import numpy as np
        g['np'] = np
        g['numpy'] = np
    except ImportError:
        pass
    try:
        import pandas as pd
        g['pd'] = pd
        g['pandas'] = pd
    except ImportError:
        pass

    if data:
        for k, v in data.items():
            g[k] = v
    return g

def main():
    _set_limits(%d, %d)
    raw = sys.stdin.read()
    try:
        data = json.loads(raw) if raw.strip() else {}
    except ValueError:
        data = {}

    out = io.StringIO()
    old_out, old_err = sys.stdout, sys.stderr
    result = {'success': False, 'output': '', 'error': None, 'result': None}
    try:
        sys.stdout = out
        sys.stderr = out
        g = _safe_globals(data)
        with open(%q, 'r') as f:
            code = f.read()
        exec(compile(code, 'user_code.py', 'exec'), g)
        result['success'] = True
        result['result'] = g.get('__result__')
    except MemoryError:
        result['error'] = 'Memory limit exceeded'
    except Exception as e:
        result['error'] = f"{type(e).__name__}: {e}"
    finally:
        sys.stdout = old_out
        sys.stderr = old_err
        result['output'] = out.getvalue()

    try:
        json.dump(result, sys.stdout)
    except TypeError:
        result['result'] = repr(result['result'])
        json.dump(result, sys.stdout)

if __name__ == '__main__':
    main()
`

func renderDriver(scriptPath string, maxRSSMB, cpuSeconds int) string {
	return fmt.Sprintf(driverTemplate, maxRSSMB, cpuSeconds, scriptPath)
}
