package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GUIHandler serves the upload page.
type GUIHandler struct{}

func NewGUIHandler() *GUIHandler {
	return &GUIHandler{}
}

// Index serves the upload page.
func (h *GUIHandler) Index(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, indexHTML)
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>NER Compare</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: #f4f5f7;
            min-height: 100vh;
            padding: 2rem;
        }
        .container { max-width: 960px; margin: 0 auto; }
        .card {
            background: white;
            border-radius: 12px;
            padding: 1.5rem;
            box-shadow: 0 4px 20px rgba(0,0,0,0.08);
            margin-bottom: 1.5rem;
        }
        h1 { color: #333; margin-bottom: 0.5rem; font-size: 1.6rem; }
        .subtitle { color: #666; margin-bottom: 1rem; }
        button {
            padding: 0.6rem 1.2rem;
            border: none;
            border-radius: 8px;
            background: #4f6bed;
            color: white;
            font-size: 1rem;
            cursor: pointer;
        }
        button:disabled { background: #aab4e8; cursor: not-allowed; }
        table { width: 100%; border-collapse: collapse; margin-top: 1rem; }
        th, td { text-align: left; padding: 0.5rem; border-bottom: 1px solid #eee; font-size: 0.9rem; }
        .status-completed { color: #2e7d32; }
        .status-failed { color: #c62828; }
        .status-running, .status-in-progress { color: #ef6c00; }
        pre {
            background: #fafafa;
            border: 1px solid #eee;
            border-radius: 8px;
            padding: 1rem;
            overflow-x: auto;
            max-height: 420px;
            font-size: 0.85rem;
        }
        .preview img { max-width: 100%; max-height: 360px; border-radius: 8px; }
        .error { color: #c62828; margin-top: 0.5rem; }
    </style>
</head>
<body>
<div class="container">
    <div class="card">
        <h1>NER Compare</h1>
        <p class="subtitle">Upload an image, PDF or text file. It is read by the VLM, tagged by two NER models, and their entities are compared.</p>
        <form id="upload-form">
            <input type="file" id="file" name="file" required>
            <button type="submit" id="submit">Start job</button>
        </form>
        <div id="upload-error" class="error"></div>
    </div>

    <div class="card" id="job-card" style="display:none">
        <h2>Job <span id="job-id"></span></h2>
        <p>Status: <strong id="job-status"></strong></p>
        <p id="job-error" class="error"></p>
        <div class="preview" id="preview"></div>
        <table>
            <thead><tr><th>#</th><th>Type</th><th>Status</th><th>Error</th><th></th></tr></thead>
            <tbody id="tasks"></tbody>
        </table>
    </div>

    <div class="card" id="output-card" style="display:none">
        <h2 id="output-title">Output</h2>
        <pre id="output"></pre>
    </div>
</div>
<script>
    const form = document.getElementById('upload-form');
    let pollTimer = null;

    form.addEventListener('submit', async (e) => {
        e.preventDefault();
        const file = document.getElementById('file').files[0];
        if (!file) return;
        document.getElementById('upload-error').textContent = '';
        document.getElementById('submit').disabled = true;

        const data = new FormData();
        data.append('file', file);
        try {
            const resp = await fetch('/api/v1/jobs', { method: 'POST', body: data });
            const body = await resp.json();
            if (!resp.ok) throw new Error(body.error || resp.statusText);
            document.getElementById('job-card').style.display = 'block';
            document.getElementById('job-id').textContent = body.job_id;
            showPreview(body.uploaded_filename);
            poll(body.job_id);
        } catch (err) {
            document.getElementById('upload-error').textContent = err.message;
            document.getElementById('submit').disabled = false;
        }
    });

    function showPreview(filename) {
        const preview = document.getElementById('preview');
        preview.innerHTML = '';
        if (/\.(png|jpe?g|gif|bmp|webp)$/i.test(filename)) {
            const img = document.createElement('img');
            img.src = '/uploads/' + encodeURIComponent(filename);
            preview.appendChild(img);
        }
    }

    function poll(jobId) {
        clearTimeout(pollTimer);
        fetch('/api/v1/jobs/' + jobId + '/status')
            .then(r => r.json())
            .then(job => {
                const status = document.getElementById('job-status');
                status.textContent = job.job_status;
                status.className = 'status-' + job.job_status;
                document.getElementById('job-error').textContent = job.error_message || '';
                renderTasks(job.tasks || []);
                if (job.job_status === 'completed' || job.job_status === 'failed') {
                    document.getElementById('submit').disabled = false;
                    return;
                }
                pollTimer = setTimeout(() => poll(jobId), 2000);
            })
            .catch(() => { pollTimer = setTimeout(() => poll(jobId), 5000); });
    }

    function renderTasks(tasks) {
        const body = document.getElementById('tasks');
        body.innerHTML = '';
        tasks.forEach(t => {
            const row = document.createElement('tr');
            row.innerHTML = '<td>' + t.task_order + '</td><td>' + t.task_type + '</td>' +
                '<td class="status-' + t.status + '">' + t.status + '</td><td></td><td></td>';
            row.children[3].textContent = t.error_message || '';
            if (t.status === 'completed') {
                const btn = document.createElement('button');
                btn.textContent = 'Output';
                btn.onclick = () => showOutput(t.task_id, t.task_type);
                row.children[4].appendChild(btn);
            }
            body.appendChild(row);
        });
    }

    async function showOutput(taskId, taskType) {
        const resp = await fetch('/api/v1/tasks/' + taskId + '/output');
        const body = await resp.json();
        let value = body.output_text ?? body.output_json ?? body.output_comparison_json ?? body.error;
        if (typeof value !== 'string') value = JSON.stringify(value, null, 2);
        document.getElementById('output-card').style.display = 'block';
        document.getElementById('output-title').textContent = taskType + ' output';
        document.getElementById('output').textContent = value;
    }
</script>
</body>
</html>`
